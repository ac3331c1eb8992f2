package layout

import "testing"

func TestOrientationFollowsLongerAxis(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
		want string
	}{
		{name: "landscape", rect: Rect{Width: 800, Height: 600}, want: SplitH},
		{name: "portrait", rect: Rect{Width: 600, Height: 800}, want: SplitV},
		{name: "square", rect: Rect{Width: 500, Height: 500}, want: SplitH},
		{name: "empty", rect: Rect{}, want: SplitH},
		{name: "off by one", rect: Rect{Width: 999, Height: 1000}, want: SplitV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Orientation(tt.rect); got != tt.want {
				t.Fatalf("Orientation(%+v) = %s, want %s", tt.rect, got, tt.want)
			}
		})
	}
}

func TestOrientationExhaustiveSmallGrid(t *testing.T) {
	for w := 0; w <= 40; w++ {
		for h := 0; h <= 40; h++ {
			got := Orientation(Rect{Width: w, Height: h})
			want := SplitH
			if h > w {
				want = SplitV
			}
			if got != want {
				t.Fatalf("Orientation(%dx%d) = %s, want %s", w, h, got, want)
			}
		}
	}
}
