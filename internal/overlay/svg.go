package overlay

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// WriteSVG serialises the container as a standalone SVG document sized
// width×height. Rectangles come from the mounted canvas, if any; the
// indicator is emitted as text lines when visible.
func WriteSVG(w io.Writer, c *Container, width, height float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" class="bbox-container" width="%s" height="%s">`, num(width), num(height))
	bw.WriteString("\n")
	if canvas := c.Canvas(); canvas != nil {
		bw.WriteString(`<g class="overlay">`)
		bw.WriteString("\n")
		for _, r := range canvas.Rects() {
			fmt.Fprintf(bw, `<rect class="%s" data-key="%s" x="%s" y="%s" width="%s" height="%s" style="stroke:%s;stroke-width:2;fill:none"/>`,
				escape(r.Class), escape(r.Key), num(r.X), num(r.Y), num(r.Width), num(r.Height), escape(r.Stroke))
			bw.WriteString("\n")
		}
		bw.WriteString("</g>\n")
	}
	if ind := c.Indicator(); ind.Visible && ind.Text != "" {
		bw.WriteString(`<text class="indicator" x="8" y="20" fill="white">`)
		for i, line := range strings.Split(ind.Text, "\n") {
			dy := "0"
			if i > 0 {
				dy = "1.2em"
			}
			fmt.Fprintf(bw, `<tspan x="8" dy="%s">%s</tspan>`, dy, escape(line))
		}
		bw.WriteString("</text>\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
