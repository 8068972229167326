package attachurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty", raw: "", want: ""},
		{name: "blank separators", raw: " ,; \n", want: ""},
		{
			name: "mixed separators keep order",
			raw:  "https://a.example/x.pdf; http://b.example/y.png\nhttps://c.example/z",
			want: "https://a.example/x.pdf,http://b.example/y.png,https://c.example/z",
		},
		{name: "drops non http", raw: "ftp://a.example/x, mailto:a@b.c, /relative/path, https://ok.example/f", want: "https://ok.example/f"},
		{name: "drops unparseable", raw: "http://[::1, https://ok.example/f", want: "https://ok.example/f"},
		{
			name: "drive file path",
			raw:  "https://drive.google.com/file/d/1AbC-d_9/view?usp=sharing",
			want: "https://drive.google.com/uc?export=download&id=1AbC-d_9",
		},
		{
			name: "drive open id",
			raw:  "https://drive.google.com/open?id=XYZ123",
			want: "https://drive.google.com/uc?export=download&id=XYZ123",
		},
		{
			name: "drive uc id",
			raw:  "https://drive.google.com/uc?id=XYZ123&export=view",
			want: "https://drive.google.com/uc?export=download&id=XYZ123",
		},
		{name: "drive folder passes", raw: "https://drive.google.com/drive/folders/abc", want: "https://drive.google.com/drive/folders/abc"},
		{
			name: "dropbox dl0",
			raw:  "https://www.dropbox.com/s/abc/report.pdf?dl=0",
			want: "https://www.dropbox.com/s/abc/report.pdf?dl=1",
		},
		{
			name: "dropbox without dl",
			raw:  "https://www.dropbox.com/scl/fi/abc/report.pdf?rlkey=k",
			want: "https://www.dropbox.com/scl/fi/abc/report.pdf?dl=1&rlkey=k",
		},
		{
			name: "dropbox already direct",
			raw:  "https://www.dropbox.com/s/abc/report.pdf?dl=1",
			want: "https://www.dropbox.com/s/abc/report.pdf?dl=1",
		},
		{name: "unrecognized passes", raw: "https://files.example.com/a%20b.pdf?x=1", want: "https://files.example.com/a%20b.pdf?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestList(t *testing.T) {
	assert.Nil(t, List(""))
	assert.Equal(t, []string{"https://a/x", "https://b/y"}, List("https://a/x,https://b/y"))
}
