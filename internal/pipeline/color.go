package pipeline

import (
	"strconv"
	"strings"
)

// Fill is a cell's background-color descriptor as the workbook decoder
// hands it over: a direct hex string, a legacy palette index, or a theme
// reference. A nil Fill means no fill at all.
type Fill struct {
	Hex     string
	Indexed *int
	Theme   *int
}

type ColorKind int

const (
	ColorNone ColorKind = iota
	ColorRGB
	ColorTheme
	ColorUnresolved
)

type RGB struct {
	R, G, B uint8
}

// ColorToken is the normalized form of a fill descriptor. Indexed fills
// resolve to RGB through the legacy palette; theme fills stay symbolic
// because no theme-to-RGB table is available at this layer.
type ColorToken struct {
	Kind  ColorKind
	RGB   RGB
	Index int
	Hex   string
}

// indexedPalette is the legacy 64-entry indexed color table.
var indexedPalette = [64]string{
	"000000", "FFFFFF", "FF0000", "00FF00", "0000FF", "FFFF00", "FF00FF", "00FFFF",
	"000000", "FFFFFF", "FF0000", "00FF00", "0000FF", "FFFF00", "FF00FF", "00FFFF",
	"800000", "008000", "000080", "808000", "800080", "008080", "C0C0C0", "808080",
	"9999FF", "993366", "FFFFCC", "CCFFFF", "660066", "FF8080", "0066CC", "CCCCFF",
	"000080", "FF00FF", "FFFF00", "00FFFF", "800080", "800000", "008080", "0000FF",
	"00CCFF", "CCFFFF", "CCFFCC", "FFFF99", "99CCFF", "FF99CC", "CC99FF", "FFCC99",
	"3366FF", "33CCCC", "99CC00", "FFCC00", "FF9900", "FF6600", "666699", "969696",
	"003366", "339966", "003300", "333300", "993300", "993366", "333399", "333333",
}

// ExtractColor turns a fill descriptor into a ColorToken. Malformed
// input degrades to ColorNone rather than erroring: fills come from
// hand-edited spreadsheets and are inherently noisy.
func ExtractColor(fill *Fill) ColorToken {
	if fill == nil {
		return ColorToken{Kind: ColorNone}
	}

	if hex := strings.TrimSpace(fill.Hex); hex != "" {
		rgb, ok := parseHexRGB(hex)
		if !ok {
			return ColorToken{Kind: ColorNone}
		}
		return ColorToken{Kind: ColorRGB, RGB: rgb, Hex: normalizeHex(hex)}
	}

	if fill.Indexed != nil {
		idx := *fill.Indexed
		if idx < 0 || idx >= len(indexedPalette) {
			return ColorToken{Kind: ColorUnresolved, Index: idx}
		}
		rgb, _ := parseHexRGB(indexedPalette[idx])
		return ColorToken{Kind: ColorRGB, RGB: rgb, Hex: indexedPalette[idx]}
	}

	if fill.Theme != nil {
		return ColorToken{Kind: ColorTheme, Index: *fill.Theme}
	}

	return ColorToken{Kind: ColorNone}
}

// normalizeHex strips a leading '#' and an 8-digit alpha prefix, keeping
// the last 6 hex characters uppercased.
func normalizeHex(hex string) string {
	s := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(hex), "#"))
	if len(s) > 6 {
		s = s[len(s)-6:]
	}
	return s
}

func parseHexRGB(hex string) (RGB, bool) {
	s := normalizeHex(hex)
	if len(s) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}
