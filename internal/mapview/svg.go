package mapview

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/geo"
)

// offCanvas is where heat circles that cannot be projected are drawn.
const offCanvas = -99999

const sceneCSS = `
.eq-sphere{fill:#0b1d33;stroke:#27476e;stroke-width:1px;vector-effect:non-scaling-stroke}
.eq-graticule{fill:none;stroke:#1f3b5c;stroke-width:.5px;vector-effect:non-scaling-stroke}
.eq-land{fill:#20364f;stroke:none}
.eq-borders{fill:none;stroke:#3c5a7d;stroke-width:.5px;vector-effect:non-scaling-stroke}
.eq-tectonic{fill:none;stroke:#ff7043;stroke-width:1px;stroke-dasharray:4 3;vector-effect:non-scaling-stroke}
.eq-heat{mix-blend-mode:screen}
.eq-core{fill:var(--core-color);stroke:#0b1d33;stroke-width:.5px}
.eq-active-ring{fill:none;stroke:#fff;stroke-width:1.5px}
.eq-ripple{fill:none;stroke:var(--ripple-color);stroke-width:1.5px;opacity:0}
.eq-marker-new .eq-ripple{animation:eq-ripple var(--ripple-duration) ease-out 1}
.eq-marker-new .ring-2{animation-delay:calc(var(--ripple-duration) / 3)}
.eq-marker-new .ring-3{animation-delay:calc(var(--ripple-duration) * 2 / 3)}
@keyframes eq-ripple{from{transform:scale(1);opacity:.65}to{transform:scale(4);opacity:0}}
`

// WriteSVG encodes the current scene with transitions sampled at the map's
// clock.
func (m *Map) WriteSVG(w io.Writer) error {
	var buf bytes.Buffer
	if err := m.encodeScene(&buf); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (m *Map) encodeScene(buf *bytes.Buffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	now := m.clock.Now()

	fmt.Fprintf(buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d" class="eq-map">`,
		m.opts.Width, m.opts.Height, m.opts.Width, m.opts.Height)
	buf.WriteString("<style>")
	buf.WriteString(sceneCSS)
	buf.WriteString("</style>")

	fmt.Fprintf(buf, `<g class="eq-zoom-layer" transform="%s">`, m.transform)
	fmt.Fprintf(buf, `<path class="eq-sphere" d="%s"/>`, m.paths.sphere)
	fmt.Fprintf(buf, `<path class="eq-graticule" d="%s"/>`, m.paths.graticule)
	fmt.Fprintf(buf, `<path class="eq-land" d="%s"/>`, m.paths.countries)
	fmt.Fprintf(buf, `<path class="eq-borders" d="%s"/>`, m.paths.borders)

	fmt.Fprintf(buf, `<g class="eq-tectonic-layer" style="display:%s">`, display(m.tectonicOn))
	if m.tectonic != "" {
		fmt.Fprintf(buf, `<path class="eq-tectonic" d="%s"/>`, m.tectonic)
	}
	buf.WriteString("</g>")

	fmt.Fprintf(buf, `<g class="eq-heatmap-layer" style="display:%s">`, display(m.heatmapOn))
	m.heat.each(func(el *element) { m.writeHeat(buf, el, now) })
	buf.WriteString("</g>")

	fmt.Fprintf(buf, `<g class="eq-marker-layer" style="display:%s">`, display(!m.heatmapOn))
	m.markers.each(func(el *element) { m.writeMarker(buf, el, now) })
	buf.WriteString("</g>")

	buf.WriteString("</g></svg>")
	return nil
}

func (m *Map) writeHeat(buf *bytes.Buffer, el *element, now time.Time) {
	e := el.event
	cx, cy := float64(offCanvas), float64(offCanvas)
	if p, ok := m.proj.Project(e.Lon, e.Lat); ok {
		cx, cy = p.X, p.Y
	}
	r := HeatRadius(e.Mag) * m.heat.progress(el, now)
	fmt.Fprintf(buf, `<circle class="eq-heat" data-id="%s" cx="%s" cy="%s" r="%s" fill="%s" opacity="%s"/>`,
		escape(e.ID), geo.FormatFloat(cx), geo.FormatFloat(cy), geo.FormatFloat(r),
		MagnitudeColor(e.Mag), formatOpacity(HeatOpacity(e.Depth)))
}

func (m *Map) writeMarker(buf *bytes.Buffer, el *element, now time.Time) {
	e := el.event
	p, ok := m.proj.Project(e.Lon, e.Lat)
	color := MagnitudeColor(e.Mag)
	radius := MarkerRadius(e.Mag)
	active := e.ID == m.activeID

	classes := []string{"eq-marker"}
	if el.isNew {
		classes = append(classes, "eq-marker-new")
	}
	if active {
		classes = append(classes, "eq-marker-active")
	}
	ringOpacity := 0.0
	if active {
		ringOpacity = ActiveRingOpacity
	}

	fmt.Fprintf(buf,
		`<g class="%s" data-id="%s" transform="%s" opacity="%s" style="--base-r:%s;--ripple-duration:%ss;--ripple-color:%s;--core-color:%s">`,
		strings.Join(classes, " "), escape(e.ID), MarkerTransform(p, ok, m.transform),
		formatOpacity(m.markers.progress(el, now)), geo.FormatFloat(radius),
		formatSeconds(RippleDuration(e.Mag)),
		RippleColor(e.Mag, el.onLand), color)
	fmt.Fprintf(buf, `<title>%s</title>`, escape(markerTitle(e.Mag, e.Place)))
	fmt.Fprintf(buf, `<circle class="eq-core" r="%s" opacity="%s"/>`,
		geo.FormatFloat(radius), formatOpacity(DepthOpacity(e.Depth)))
	fmt.Fprintf(buf, `<circle class="eq-active-ring" r="%s" opacity="%s"/>`,
		geo.FormatFloat(radius+ActiveRingOffset), formatOpacity(ringOpacity))
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(buf, `<circle class="eq-ripple ring-%d" r="%s" opacity="%s"/>`,
			i, geo.FormatFloat(radius), formatOpacity(RippleOpacity))
	}
	buf.WriteString("</g>")
}

func markerTitle(mag float64, place string) string {
	return fmt.Sprintf("M%.1f %s", mag, place)
}

func display(visible bool) string {
	if visible {
		return "inline"
	}
	return "none"
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(math.Round(d.Seconds()*100)/100, 'f', -1, 64)
}

func formatOpacity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 32)
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
