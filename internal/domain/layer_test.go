package domain

import "testing"

func testShapes() []Shape {
	return []Shape{
		NewShape(KindPolygon, []LonLat{{0, 0}, {10, 0}, {10, 10}, {0, 0}}),
		NewShape(KindPolygon, []LonLat{{50, 50}, {60, 50}, {60, 60}, {50, 50}}),
		NewShape(KindPolyline, []LonLat{{-20, -20}, {-10, -10}}),
	}
}

func TestNewLayer(t *testing.T) {
	l := NewLayer("world", "World", testShapes())

	if got := l.ShapeCount(); got != 3 {
		t.Errorf("ShapeCount() = %d, want 3", got)
	}
	if l.Kind != KindPolygon {
		t.Errorf("Kind = %v, want %v", l.Kind, KindPolygon)
	}
	want := NewBBox(-20, -20, 60, 60)
	if l.BBox != want {
		t.Errorf("BBox = %+v, want %+v", l.BBox, want)
	}
	if !l.IsReady() {
		t.Error("IsReady() = false after NewLayer")
	}
}

func TestLayerShapesIn(t *testing.T) {
	l := NewLayer("world", "World", testShapes())

	tests := []struct {
		name string
		box  BBox
		want int
	}{
		{"everything", NewBBox(-180, -90, 180, 90), 3},
		{"first only", NewBBox(1, 1, 2, 2), 1},
		{"nothing", NewBBox(100, 70, 120, 80), 0},
		{"two", NewBBox(-15, -15, 5, 5), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(l.ShapesIn(tt.box)); got != tt.want {
				t.Errorf("len(ShapesIn()) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLayerShapesInKeepsOrder(t *testing.T) {
	l := NewLayer("world", "World", testShapes())

	got := l.ShapesIn(NewBBox(-180, -90, 180, 90))
	for i, s := range got {
		if s.BBox != l.Shapes()[i].BBox {
			t.Errorf("shape %d out of source order", i)
		}
	}
}

func TestParseGeometryKind(t *testing.T) {
	tests := []struct {
		in   string
		want GeometryKind
	}{
		{"Point", KindPoint},
		{"MULTIPOINT", KindPoint},
		{"LineString", KindPolyline},
		{"MultiLineString", KindPolyline},
		{"Polygon", KindPolygon},
		{"MULTIPOLYGON", KindPolygon},
		{"GeometryCollection", KindNull},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseGeometryKind(tt.in); got != tt.want {
				t.Errorf("ParseGeometryKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestShapePartCount(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
		want  int
	}{
		{"empty", Shape{}, 0},
		{"implicit single part", Shape{Points: []LonLat{{0, 0}}}, 1},
		{"two parts", Shape{Points: make([]LonLat, 5), Parts: []int{0, 3}}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.PartCount(); got != tt.want {
				t.Errorf("PartCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLicense(t *testing.T) {
	l := License{Name: "CC0"}
	if l.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}
	if got := l.String(); got != "CC0" {
		t.Errorf("String() = %q, want %q", got, "CC0")
	}
	l.Attribution = "Natural Earth"
	if got := l.String(); got != "Natural Earth" {
		t.Errorf("String() = %q, want %q", got, "Natural Earth")
	}
}
