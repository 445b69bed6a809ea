package timeline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const labelHeight = 20

// WriteSVG renders tick cells, tick labels, the step line for values and,
// when selected is a valid frame, a vertical selected-frame marker.
func WriteSVG(w io.Writer, p Plot, values []float64, selected int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" class="timeline" width="%s" height="%s">`,
		num(p.Width), num(p.Height+labelHeight))
	bw.WriteString("\n")

	ticks := p.Ticks()
	for i := range ticks {
		fmt.Fprintf(bw, `<rect class="timeline-tick" x="%s" y="0" width="%s" height="%s" fill="none" stroke="#ddd"/>`,
			num(p.TickWidth*float64(i)), num(p.TickWidth-1), num(p.Height))
		bw.WriteString("\n")
	}
	for _, label := range p.TickLabels() {
		fmt.Fprintf(bw, `<text class="timeline-tick-label" x="%s" y="%s" text-anchor="middle" font-size="10">%s</text>`,
			num(label.X), num(p.Height+labelHeight-6), label.Text)
		bw.WriteString("\n")
	}

	if line := p.Line(values); len(line) > 0 {
		coords := make([]string, 0, len(line))
		for _, pt := range line {
			coords = append(coords, num(pt.X)+","+num(pt.Y))
		}
		fmt.Fprintf(bw, `<polyline class="timeline-plot" points="%s" fill="none" stroke="steelblue" stroke-width="1.5"/>`,
			strings.Join(coords, " "))
		bw.WriteString("\n")
	}

	if selected >= 0 && selected < p.TotalFrames {
		x := num(p.FrameX(selected))
		fmt.Fprintf(bw, `<line class="timeline-selected" data-frame="%d" x1="%s" y1="0" x2="%s" y2="%s" stroke="red"/>`,
			selected, x, x, num(p.Height))
		bw.WriteString("\n")
	}
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
