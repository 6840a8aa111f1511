package gateway

import "fmt"

// Category identifies a browsable listing on the gateway.
type Category int

const (
	CategoryMovies   Category = 201
	CategoryMoviesHD Category = 207
	CategoryTV       Category = 205
	CategoryTVHD     Category = 208
)

// Categories lists the browsable categories in display order.
var Categories = []Category{CategoryMovies, CategoryMoviesHD, CategoryTV, CategoryTVHD}

// Label returns the display name for the category.
func (c Category) Label() string {
	switch c {
	case CategoryMovies:
		return "Movies"
	case CategoryMoviesHD:
		return "HD Movies"
	case CategoryTV:
		return "TV Shows"
	case CategoryTVHD:
		return "HD TV Shows"
	default:
		return fmt.Sprintf("Category %d", int(c))
	}
}

// IsTV reports whether releases in this category are episodes.
func (c Category) IsTV() bool {
	return c == CategoryTV || c == CategoryTVHD
}

// IsHD reports whether releases in this category carry a quality tag.
func (c Category) IsHD() bool {
	return c == CategoryMoviesHD || c == CategoryTVHD
}

// Movie mirrors one entry of the /category and /search payloads.
type Movie struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Year         string   `json:"year"`
	PosterSmall  string   `json:"posterSmall"`
	PosterMedium string   `json:"posterMedium"`
	PosterLarge  string   `json:"posterLarge"`
	PosterXLarge string   `json:"posterXLarge"`
	Size         uint64   `json:"size"`
	SizeHuman    string   `json:"sizeHuman"`
	Seeders      int      `json:"seeders"`
	MagnetLink   string   `json:"magnetLink"`
	Release      string   `json:"release"`
	Category     Category `json:"category"`
	Season       int      `json:"season"`
	Episode      int      `json:"episode"`
	Quality      string   `json:"quality"`
}

// Key returns a value unique within one listing.
func (m Movie) Key() string {
	return fmt.Sprintf("%d-%d-%d-%d", m.ID, m.Seeders, m.Season, m.Episode)
}

// Description returns the year, or SxxEyy for episodes, plus quality for HD listings.
func (m Movie) Description() string {
	desc := m.Year
	if m.Category.IsTV() {
		desc = fmt.Sprintf("S%02dE%02d", m.Season, m.Episode)
	}
	if m.Category.IsHD() && m.Quality != "" {
		desc = fmt.Sprintf("%s (%sp)", desc, m.Quality)
	}
	return desc
}

// Summary mirrors /summary.
type Summary struct {
	ID       int      `json:"id"`
	ImdbID   string   `json:"imdbId"`
	Rating   float64  `json:"rating"`
	Runtime  int      `json:"runtime"`
	Genre    []string `json:"genre"`
	Director string   `json:"director"`
	Cast     []string `json:"cast"`
	TagLine  string   `json:"tagline"`
	Overview string   `json:"overview"`
	Video    string   `json:"video"`
}

// TrailerURL returns the hosted trailer URL, or "" when the summary has none.
func (s Summary) TrailerURL() string {
	if s.Video == "" {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + s.Video
}

// Subtitle mirrors one entry of /subtitle.
type Subtitle struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Year         string  `json:"year"`
	Release      string  `json:"release"`
	DownloadLink string  `json:"downloadLink"`
	Score        float64 `json:"score"`
}

// Suggestion mirrors one entry of /autocomplete.
type Suggestion struct {
	Title string `json:"title"`
}
