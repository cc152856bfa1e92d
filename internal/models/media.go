package models

import (
	"strings"
)

// LibraryType mirrors the server-side library classification
type LibraryType int

const (
	LibraryTypeManga LibraryType = 0
	LibraryTypeComic LibraryType = 1
	LibraryTypeBook  LibraryType = 2
)

// MediaFormat is the server's numeric format code for a readable unit
type MediaFormat int

const (
	FormatUnknown MediaFormat = 0
	FormatArchive MediaFormat = 1
	FormatEpub    MediaFormat = 2
	FormatPdf     MediaFormat = 3
	FormatImage   MediaFormat = 4
)

// ContentKind is the rendering route derived for a chapter. File extensions
// take precedence over the numeric format code, since file names are the more
// reliable signal in practice.
type ContentKind string

const (
	ContentKindImage ContentKind = "image" // archive/image backed, page-per-image
	ContentKindEpub  ContentKind = "epub"
	ContentKindPdf   ContentKind = "pdf"
)

// Library is a top-level grouping of series on the server
type Library struct {
	Id          int         `json:"id"`
	Name        string      `json:"name"`
	Type        LibraryType `json:"type"`
	LastScanned string      `json:"lastScanned"`
	Folders     []string    `json:"folders"`
}

// Series is a work within a library. VolumeCount and ChapterCount are derived
// by the client's listing enrichment and are absent from the base listing
// payload.
type Series struct {
	Id            int         `json:"id"`
	Name          string      `json:"name"`
	OriginalName  string      `json:"originalName"`
	LocalizedName string      `json:"localizedName"`
	SortName      string      `json:"sortName"`
	Summary       string      `json:"summary"`
	LibraryId     int         `json:"libraryId"`
	Pages         int         `json:"pages"`
	PagesRead     int         `json:"pagesRead"`
	Format        MediaFormat `json:"format"`
	Created       string      `json:"created"`
	LastModified  string      `json:"lastModified"`

	// Enrichment fields, zero when enrichment failed for this item
	VolumeCount  int `json:"volumeCount,omitempty"`
	ChapterCount int `json:"chapterCount,omitempty"`
}

// Volume is a grouping of chapters within a series
type Volume struct {
	Id       int       `json:"id"`
	Number   int       `json:"number"`
	Name     string    `json:"name"`
	SeriesId int       `json:"seriesId"`
	Pages    int       `json:"pages"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter is the readable unit progress is tracked against
type Chapter struct {
	Id       int    `json:"id"`
	Number   string `json:"number"`
	Range    string `json:"range"`
	Title    string `json:"title"`
	VolumeId int    `json:"volumeId"`
	Pages    int    `json:"pages"`
}

// ChapterInfo carries the metadata needed to route a chapter to the correct
// rendering strategy.
type ChapterInfo struct {
	ChapterNumber string      `json:"chapterNumber"`
	VolumeNumber  string      `json:"volumeNumber"`
	SeriesName    string      `json:"seriesName"`
	SeriesId      int         `json:"seriesId"`
	VolumeId      int         `json:"volumeId"`
	LibraryId     int         `json:"libraryId"`
	Pages         int         `json:"pages"`
	FileName      string      `json:"fileName"`
	SeriesFormat  MediaFormat `json:"seriesFormat"`
}

// Kind resolves the rendering route for this chapter. The file name's
// extension wins over the numeric format code when the two disagree.
func (i *ChapterInfo) Kind() ContentKind {
	name := strings.ToLower(i.FileName)
	switch {
	case strings.HasSuffix(name, ".epub"):
		return ContentKindEpub
	case strings.HasSuffix(name, ".pdf"):
		return ContentKindPdf
	}

	switch i.SeriesFormat {
	case FormatEpub:
		return ContentKindEpub
	case FormatPdf:
		return ContentKindPdf
	default:
		return ContentKindImage
	}
}

// BookInfo is the paginated-document metadata for EPUB-backed chapters
type BookInfo struct {
	BookTitle string `json:"bookTitle"`
	Pages     int    `json:"pages"`
	IsEpub    bool   `json:"isEpub"`
}

// BookChapter is a table-of-contents entry within an EPUB
type BookChapter struct {
	Title    string        `json:"title"`
	Part     string        `json:"part"`
	Page     int           `json:"page"`
	Children []BookChapter `json:"children,omitempty"`
}

// SearchMatch is a series match from a cross-server search, tagged with its
// originating server and library.
type SearchMatch struct {
	Series      Series `json:"series"`
	ServerID    string `json:"serverId"`
	ServerName  string `json:"serverName"`
	ServerURL   string `json:"serverUrl"`
	LibraryID   int    `json:"libraryId"`
	LibraryName string `json:"libraryName"`
}
