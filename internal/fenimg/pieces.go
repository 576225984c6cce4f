package fenimg

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// One template per piece type; FILL, STROKE and DETAIL are replaced per colour.
//
//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

type piecePalette struct {
	fill, stroke, detail string
}

var (
	whitePalette = piecePalette{fill: "#ffffff", stroke: "#000000", detail: "#000000"}
	blackPalette = piecePalette{fill: "#000000", stroke: "#000000", detail: "#ececec"}
)

func pieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}
	pieceCacheMu.RLock()
	img, ok := pieceCache[key]
	pieceCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	name := pieceAssetName(piece.Type())
	if name == "" {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}
	tpl, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	pal := whitePalette
	if piece.Color() == nchess.Black {
		pal = blackPalette
	}
	svg := strings.NewReplacer("FILL", pal.fill, "STROKE", pal.stroke, "DETAIL", pal.detail).Replace(string(tpl))

	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG([]byte(svg))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = rgba
	pieceCacheMu.Unlock()
	return rgba, nil
}

func pieceAssetName(t nchess.PieceType) string {
	var letter string
	switch t {
	case nchess.King:
		letter = "K"
	case nchess.Queen:
		letter = "Q"
	case nchess.Rook:
		letter = "R"
	case nchess.Bishop:
		letter = "B"
	case nchess.Knight:
		letter = "N"
	case nchess.Pawn:
		letter = "P"
	default:
		return ""
	}
	return "assets/pieces/" + letter + ".svg"
}

// sanitizeSVG normalises "fill: #rrggbb" spacing, which oksvg does not parse.
func sanitizeSVG(svg []byte) []byte {
	r := strings.NewReplacer(
		"fill: #", "fill:#",
		"stroke: #", "stroke:#",
		"stop-color: #", "stop-color:#",
		"fill: none", "fill:none",
	)
	return []byte(r.Replace(string(svg)))
}
