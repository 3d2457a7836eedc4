package spider

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"taka suffix", "121,500৳", "121500", true},
		{"tk prefix", "Tk 9,800", "9800", true},
		{"dollar with cents", "$ 1,299.00", "1299", true},
		{"plain digits", "4500", "4500", true},
		{"surrounding text", "Special Price 12,500৳ (ex. VAT)", "12500", true},
		{"call for price", "Call for Price", "0", false},
		{"tba", "TBA", "0", false},
		{"empty", "", "0", false},
		{"zero", "0৳", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParsePrice(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("ParsePrice(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  AMD   Ryzen\n7  5800X ", "AMD Ryzen 7 5800X"},
		{"\t\n ", ""},
		{"already clean", "already clean"},
	}

	for _, tt := range tests {
		if got := NormalizeText(tt.input); got != tt.want {
			t.Fatalf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AMD Ryzen 7 5800X Processor", "amd-ryzen-7-5800x-processor"},
		{"MSI B550M PRO-VDH WIFI", "msi-b550m-pro-vdh-wifi"},
		{"Corsair Vengeance 32GB (2x16GB) DDR4", "corsair-vengeance-32gb-2x16gb-ddr4"},
		{"  trailing  spaces  ", "trailing-spaces"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.input); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestExtractBrand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"AMD Ryzen 7 5800X", "AMD"},
		{"Intel Core i5-12400F", "Intel"},
		{"G.Skill Trident Z5 32GB", "G.Skill"},
		{"Gigabyte B650M DS3H", "Gigabyte"},
		{"NoName Widget 2000", "NoName"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractBrand(tt.input); got != tt.want {
			t.Fatalf("ExtractBrand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseStock(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"In Stock", true},
		{"", true},
		{"Out of Stock", false},
		{"Stock Out", false},
		{"Pre Order", false},
		{"Pre-Order", false},
		{"Upcoming", false},
		{"Call for Price", false},
	}

	for _, tt := range tests {
		if got := ParseStock(tt.input); got != tt.want {
			t.Fatalf("ParseStock(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
