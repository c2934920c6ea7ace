package geo

// Graticule returns meridians and parallels every step degrees as lon/lat
// polylines. Minor meridians stop at ±80° so they do not converge into a
// smudge at the poles; meridians on multiples of 90° run pole to pole.
func Graticule(step float64) [][][2]float64 {
	const precision = 2.5
	var lines [][][2]float64

	for lon := -180.0; lon <= 180; lon += step {
		extent := 80.0
		if int(lon)%90 == 0 {
			extent = 90
		}
		var line [][2]float64
		for lat := -extent; lat <= extent; lat += precision {
			line = append(line, [2]float64{lon, lat})
		}
		lines = append(lines, line)
	}

	for lat := -80.0; lat <= 80; lat += step {
		var line [][2]float64
		for lon := -180.0; lon <= 180; lon += precision {
			line = append(line, [2]float64{lon, lat})
		}
		lines = append(lines, line)
	}
	return lines
}
