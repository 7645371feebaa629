package views

import (
	"encoding/json"
	"html/template"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/tienda-labs/tienda/internal/store"
	"github.com/tienda-labs/tienda/internal/ui/resources"
)

var funcs = template.FuncMap{
	"static":      resources.StaticPath,
	"add":         func(a, b int) int { return a + b },
	"sub":         func(a, b int) int { return a - b },
	"seq":         seq,
	"stars":       Stars,
	"starsN":      func(n int) string { return Stars(float64(n)) },
	"pageURL":     PageURL,
	"genderLabel": GenderLabel,
	"money":       func(m store.Money) string { return m.String() },
	"join":        strings.Join,
	"contains":    contains,
	"json":        toJSON,
	"itoa":        func(n int64) string { return strconv.FormatInt(n, 10) },
}

// seq returns 1..n.
func seq(n int) []int {
	if n < 1 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Stars renders a 0-5 rating as filled and empty star glyphs, rounding to the
// nearest whole star.
func Stars(avg float64) string {
	n := int(math.Round(avg))
	n = max(0, min(5, n))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// PageURL returns "?<query>" with page replaced.
func PageURL(q url.Values, page int) string {
	v := url.Values{}
	for k, vs := range q {
		v[k] = append([]string(nil), vs...)
	}
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}

// GenderLabel returns a display label for a stored gender value.
func GenderLabel(g string) string {
	switch g {
	case store.GenderMen:
		return "Men"
	case store.GenderWomen:
		return "Women"
	case store.GenderUnisex, "":
		return "Unisex"
	default:
		return g
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func toJSON(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}
