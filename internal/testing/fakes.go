package testing

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// FakeHash returns a random 40-character hex info hash.
func FakeHash() string {
	return gofakeit.Regex("[a-f0-9]{40}")
}

// FakeReleaseName returns a random scene-style release directory name,
// e.g. "Some.Movie.2014.1080p.BluRay.x264-GROUP".
func FakeReleaseName() string {
	title := strings.ReplaceAll(gofakeit.MovieName(), " ", ".")
	group := strings.ToUpper(gofakeit.LetterN(5))
	return fmt.Sprintf("%s.%d.1080p.BluRay.x264-%s", title, gofakeit.Year(), group)
}

// FakeMagnet returns a magnet link for the given info hash.
func FakeMagnet(hash string) string {
	return "magnet:?xt=urn:btih:" + hash
}
