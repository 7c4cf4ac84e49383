// Package status builds the synthetic "mirror status" catalog entry that
// describes an aggregation run, and checks records against the plugin
// record shape that catalog consumers expect.
package status

const (
	// PackageName is the reserved identity key of the status record
	PackageName = "koishi-plugin-mirror-status"

	// ID is the _id of the status record
	ID = "mirror-status"

	// Shortname is the display name of the status record
	Shortname = "镜像状态"

	// DefaultPublisherName and DefaultPublisherEmail identify the mirror maintainers
	DefaultPublisherName  = "YesImBot Team"
	DefaultPublisherEmail = "2445691453@qq.com"

	// DisplayLayout formats the wall-clock time embedded in the description
	DisplayLayout = "2006/01/02 15:04:05"
)

// Person is a package publisher or maintainer
type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Score holds the catalog's quality scores
type Score struct {
	Final  float64     `json:"final"`
	Detail ScoreDetail `json:"detail"`
}

// ScoreDetail holds the score components
type ScoreDetail struct {
	Quality     float64 `json:"quality"`
	Popularity  float64 `json:"popularity"`
	Maintenance float64 `json:"maintenance"`
}

// Package is the npm package metadata of a record
type Package struct {
	License      string   `json:"license"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	Publisher    Person   `json:"publisher"`
	Maintainers  []Person `json:"maintainers"`
	Date         string   `json:"date"`
	Links        Links    `json:"links"`
	Contributors []Person `json:"contributors"`
}

// Links points at the package's npm page and homepage
type Links struct {
	NPM      string `json:"npm"`
	Homepage string `json:"homepage"`
}

// Flags holds catalog flags
type Flags struct {
	Insecure int `json:"insecure"`
}

// Manifest is the plugin manifest of a record
type Manifest struct {
	Description string   `json:"description"`
	Locales     []string `json:"locales"`
	Service     Service  `json:"service"`
}

// Service lists the services a plugin requires, optionally uses and implements
type Service struct {
	Required   []string `json:"required"`
	Optional   []string `json:"optional"`
	Implements []string `json:"implements"`
}

// Downloads holds download statistics
type Downloads struct {
	LastMonth int `json:"lastMonth"`
}

// Record is the full shape of the status entry. Field order is the
// serialized key order.
type Record struct {
	ID          string    `json:"_id"`
	Category    string    `json:"category"`
	Shortname   string    `json:"shortname"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
	Updated     string    `json:"updated"`
	Portable    bool      `json:"portable"`
	Ignored     bool      `json:"ignored"`
	Verified    bool      `json:"verified"`
	Score       Score     `json:"score"`
	Rating      float64   `json:"rating"`
	License     string    `json:"license"`
	Package     Package   `json:"package"`
	Flags       Flags     `json:"flags"`
	Manifest    Manifest  `json:"manifest"`
	PublishSize int       `json:"publishSize"`
	Insecure    bool      `json:"insecure"`
	InstallSize int       `json:"installSize"`
	Dependents  int       `json:"dependents"`
	Downloads   Downloads `json:"downloads"`
}
