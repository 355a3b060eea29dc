package setlistfm

// Wire types for the setlist.fm REST API (v1.0). Only the fields the
// pipeline consumes are declared; the rest of the payload is ignored on
// decode.

// Artist is a performing artist as returned by the artist search.
type Artist struct {
	MBID string `json:"mbid"`
	Name string `json:"name"`
}

// Country is the country of a city.
type Country struct {
	Name string `json:"name"`
}

// City is the city a venue is located in.
type City struct {
	Name    string  `json:"name"`
	Country Country `json:"country"`
}

// Venue is the location a concert took place at.
type Venue struct {
	Name string `json:"name"`
	City City   `json:"city"`
}

// Tour is the (optional) tour a concert belongs to.
type Tour struct {
	Name string `json:"name"`
}

// Song is one performed song inside a set.
type Song struct {
	Name string `json:"name"`
}

// Set is one block of songs; Encore is >= 1 for encore sets.
type Set struct {
	Encore int    `json:"encore"`
	Song   []Song `json:"song"`
}

// Sets wraps the set blocks of a setlist.
type Sets struct {
	Set []Set `json:"set"`
}

// Setlist is one raw concert setlist.
// EventDate uses the upstream DD-MM-YYYY format.
type Setlist struct {
	ID        string `json:"id"`
	EventDate string `json:"eventDate"`
	Artist    Artist `json:"artist"`
	Venue     Venue  `json:"venue"`
	Tour      *Tour  `json:"tour,omitempty"`
	Sets      Sets   `json:"sets"`
}

// artistSearchResponse is the payload of GET search/artists.
type artistSearchResponse struct {
	Artist []Artist `json:"artist"`
}

// setlistsResponse is the payload of GET artist/{mbid}/setlists.
type setlistsResponse struct {
	Setlist      []Setlist `json:"setlist"`
	Total        int       `json:"total"`
	Page         int       `json:"page"`
	ItemsPerPage int       `json:"itemsPerPage"`
}
