// Package fenimg draws a chess position given as FEN into a PNG diagram.
package fenimg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const DefaultSize = 600

var ErrInvalidFEN = errors.New("invalid FEN")

var (
	marginColor = color.RGBA{0xED, 0xC9, 0xAF, 0xFF}
	coordColor  = color.RGBA{0x8B, 0x5A, 0x2B, 0xFF}
	lightSquare = color.RGBA{0xFF, 0xCE, 0x9E, 0xFF}
	darkSquare  = color.RGBA{0xD1, 0x8B, 0x47, 0xFF}
)

type Options struct {
	// Size is the edge of the square output in pixels. Zero means DefaultSize.
	Size int
	// Flipped draws the board from black's side.
	Flipped bool
	// NoCoordinates leaves the margin empty.
	NoCoordinates bool
}

// ParseFEN validates fen and returns its position.
func ParseFEN(fen string) (*nchess.Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidFEN)
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt).Position(), nil
}

// RenderFEN parses and draws fen.
func RenderFEN(ctx context.Context, fen string, opts Options) ([]byte, error) {
	pos, err := ParseFEN(fen)
	if err != nil {
		return nil, err
	}
	return Render(ctx, pos.Board(), opts)
}

// Render draws board with a coordinate margin around it.
func Render(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, errors.New("board is nil")
	}
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	margin := size / 25
	square := (size - 2*margin) / 8
	if square < 8 {
		return nil, fmt.Errorf("size %d too small", size)
	}
	// integer squares; the remainder widens the margin
	margin = (size - 8*square) / 2
	origin := image.Pt(margin, margin)

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(marginColor), image.Point{}, draw.Src)

	squares := board.SquareMap()
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := squareAt(row, col, opts.Flipped)
			r := image.Rect(origin.X+col*square, origin.Y+row*square, origin.X+(col+1)*square, origin.Y+(row+1)*square)
			draw.Draw(img, r, image.NewUniform(squareColor(sq)), image.Point{}, draw.Src)

			p := squares[sq]
			if p == nchess.NoPiece {
				continue
			}
			glyph, err := pieceImage(p, square)
			if err != nil {
				return nil, err
			}
			draw.Draw(img, r, glyph, image.Point{}, draw.Over)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if !opts.NoCoordinates {
		drawCoordinates(img, origin, square, margin, opts.Flipped)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareAt maps a screen cell (row 0 at the top) to a board square.
func squareAt(row, col int, flipped bool) nchess.Square {
	file, rank := col, 7-row
	if flipped {
		file, rank = 7-col, row
	}
	return nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func drawCoordinates(img *image.RGBA, origin image.Point, square, margin int, flipped bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(coordColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*square

	for i := 0; i < 8; i++ {
		sq := squareAt(i, i, flipped)
		center := origin.Y + i*square + square/2
		label := sq.Rank().String()
		centerText(d, label, margin/2, center+ascent/2)
		centerText(d, label, origin.X+8*square+margin/2, center+ascent/2)

		fileLabel := sq.File().String()
		x := origin.X + i*square + square/2
		centerText(d, fileLabel, x, origin.Y-margin/2+ascent/2)
		centerText(d, fileLabel, x, boardEnd+margin/2+ascent/2)
	}
}

func centerText(d *font.Drawer, text string, cx, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(cx-w/2, baseline)
	d.DrawString(text)
}
