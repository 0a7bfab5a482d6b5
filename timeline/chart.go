package timeline

import (
	"slices"
	"strings"
)

// SegmentCategory is the single row of the segment chart
const SegmentCategory = "Segment"

// Point is one bar of an x-range chart
type Point struct {
	X           int64   `json:"x"`
	X2          int64   `json:"x2"`
	Y           int     `json:"y"`
	Color       *string `json:"color,omitempty"`
	Name        string  `json:"name"`
	RealStartMs int64   `json:"realStartMs"`
	RealEndMs   int64   `json:"realEndMs"`
}

// Chart is a ready to render x-range series
type Chart struct {
	Categories []string `json:"categories"`
	Points     []Point  `json:"points"`
}

// TagChart lays out one row per tag, rows sorted by tag name
func TagChart(intervals []Interval) Chart {
	names := make(map[int64]string)
	order := make([]int64, 0)
	for _, it := range intervals {
		if _, ok := names[it.SubjectID]; !ok {
			order = append(order, it.SubjectID)
		}
		names[it.SubjectID] = it.Name
	}

	categories := make([]string, 0, len(order))
	for _, id := range order {
		categories = append(categories, names[id])
	}
	slices.SortStableFunc(categories, compareNames)

	index := make(map[string]int, len(categories))
	for i, name := range categories {
		index[name] = i
	}

	points := make([]Point, 0, len(intervals))
	for _, it := range intervals {
		points = append(points, toPoint(it, index[it.Name]))
	}
	return Chart{Categories: categories, Points: points}
}

// SegmentChart puts every segment interval on a single row
func SegmentChart(intervals []Interval) Chart {
	points := make([]Point, 0, len(intervals))
	for _, it := range intervals {
		points = append(points, toPoint(it, 0))
	}
	return Chart{Categories: []string{SegmentCategory}, Points: points}
}

func toPoint(it Interval, y int) Point {
	return Point{
		X:           it.StartMs,
		X2:          it.EndMs,
		Y:           y,
		Color:       it.Color,
		Name:        it.Name,
		RealStartMs: it.RealStartMs,
		RealEndMs:   it.RealEndMs,
	}
}

// compareNames orders case-insensitively, falling back to byte order
func compareNames(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
