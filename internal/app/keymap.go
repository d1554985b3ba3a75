package app

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyQuitUpper = "Q"
	KeyCtrlC     = "ctrl+c"
	KeySpace     = " "
	KeyUpload    = "u"
	KeyProcess   = "p"
	KeyCancel    = "x"
	KeyOpenDoc   = "o"
	KeyHistory   = "h"
	KeyFaster    = "+"
	KeyFasterAlt = "="
	KeySlower    = "-"
	KeySeekBack  = "left"
	KeySeekFwd   = "right"
	KeySeekStart = "home"
	KeySeekEnd   = "end"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeyBackspace = "backspace"
)

// speedPresets maps the number keys to discrete playback speeds.
var speedPresets = map[string]float64{
	"1": 0.5,
	"2": 0.75,
	"3": 1.0,
	"4": 1.25,
	"5": 1.5,
	"6": 2.0,
}

const (
	speedStep = 0.1
	seekStep  = 5.0
)
