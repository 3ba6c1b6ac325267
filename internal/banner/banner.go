// Package banner prints the startup banner of the serve command.
package banner

import (
	"fmt"
	"io"
	"strings"
)

// Tagline follows the art on the version line.
const Tagline = "shopping assistant"

const bannerArt = `
     _                                _     _
 ___| |__   ___  _ __   __ _ ___ ___(_)___| |_
/ __| '_ \ / _ \| '_ \ / _' / __/ __| / __| __|
\__ \ | | | (_) | |_) | (_| \__ \__ \ \__ \ |_
|___/_| |_|\___/| .__/ \__,_|___/___/_|___/\__|
                |_|
`

// Info is what the banner reports under the art.
type Info struct {
	Version string
	Model   string // model name answering chats
	Catalog string // catalog driver
	Listen  string // bound address, empty before the gateway is up
}

// Startup writes the art followed by the version line and one line per
// non-empty Info field.
func Startup(w io.Writer, info Info) {
	for _, line := range splitLines(bannerArt) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  %s  v%s\n", Tagline, info.Version)
	if info.Model != "" {
		fmt.Fprintf(w, "  model    %s\n", info.Model)
	}
	if info.Catalog != "" {
		fmt.Fprintf(w, "  catalog  %s\n", info.Catalog)
	}
	if info.Listen != "" {
		fmt.Fprintf(w, "  listen   %s\n", info.Listen)
	}
	fmt.Fprintln(w)
}

// splitLines drops the leading newline of a raw string literal.
func splitLines(s string) []string {
	s = strings.TrimPrefix(s, "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
