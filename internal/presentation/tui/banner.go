package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	`   ___                _            _             `,
	`  / __|___ _ _  __| |_  _ __| |_ ___ _ _ `,
	` | (__/ _ \ ' \/ _' | || / _|  _/ _ \ '_|`,
	`  \___\___/_||_\__,_|\_,_\__|\__\___/_|  `,
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9"}

// PrintBanner writes the Conductor banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, termenv.String(line).Foreground(p.Color(bannerColors[i%len(bannerColors)])))
	}
	if v := strings.TrimSpace(version); v != "" {
		fmt.Fprintln(w, termenv.String("  v"+v).Faint())
	}
	fmt.Fprintln(w)
}
