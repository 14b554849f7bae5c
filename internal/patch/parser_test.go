package patch

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want []Block
	}{
		{
			name: "single block",
			diff: "<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "foo", Replace: "bar"}},
		},
		{
			name: "multi-line block",
			diff: "<<<<<<< SEARCH\ndef f():\n    return 1\n=======\ndef f():\n    return 2\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "def f():\n    return 1", Replace: "def f():\n    return 2"}},
		},
		{
			name: "two blocks with prose between",
			diff: "Here is the first change:\n" +
				"<<<<<<< SEARCH\none\n=======\nONE\n>>>>>>> REPLACE\n" +
				"And now the second:\n" +
				"<<<<<<< SEARCH\ntwo\n=======\nTWO\n>>>>>>> REPLACE\n",
			want: []Block{
				{Search: "one", Replace: "ONE"},
				{Search: "two", Replace: "TWO"},
			},
		},
		{
			name: "empty diff",
			diff: "",
			want: nil,
		},
		{
			name: "no markers",
			diff: "just some text\nwith no blocks at all\n",
			want: nil,
		},
		{
			name: "empty search section",
			diff: "<<<<<<< SEARCH\n=======\nnew line\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "", Replace: "new line"}},
		},
		{
			name: "empty replace section",
			diff: "<<<<<<< SEARCH\nremove me\n=======\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "remove me", Replace: ""}},
		},
		{
			name: "markers with trailing whitespace",
			diff: "<<<<<<< SEARCH  \nfoo\n=======\t\nbar\n>>>>>>> REPLACE \n",
			want: []Block{{Search: "foo", Replace: "bar"}},
		},
		{
			name: "markers indented by surrounding markdown",
			diff: "  <<<<<<< SEARCH\nfoo\n  =======\nbar\n  >>>>>>> REPLACE\n",
			want: []Block{{Search: "foo", Replace: "bar"}},
		},
		{
			name: "unterminated block is dropped",
			diff: "<<<<<<< SEARCH\nfoo\n=======\nbar\n",
			want: nil,
		},
		{
			name: "separator before search marker is ignored",
			diff: "=======\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "foo", Replace: "bar"}},
		},
		{
			name: "longer equals run is content not separator",
			diff: "<<<<<<< SEARCH\n=========\n=======\nbar\n>>>>>>> REPLACE\n",
			want: []Block{{Search: "=========", Replace: "bar"}},
		},
		{
			name: "block inside markdown fence",
			diff: "```\n<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE\n```\n",
			want: []Block{{Search: "foo", Replace: "bar"}},
		},
		{
			name: "crlf line endings",
			diff: "<<<<<<< SEARCH\r\nfoo\r\n=======\r\nbar\r\n>>>>>>> REPLACE\r\n",
			want: []Block{{Search: "foo\r", Replace: "bar\r"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.diff)
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() returned %d blocks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Search != tt.want[i].Search {
					t.Errorf("block %d Search = %q, want %q", i, got[i].Search, tt.want[i].Search)
				}
				if got[i].Replace != tt.want[i].Replace {
					t.Errorf("block %d Replace = %q, want %q", i, got[i].Replace, tt.want[i].Replace)
				}
			}
		})
	}
}

func TestParseOrderIsSourceOrder(t *testing.T) {
	diff := "<<<<<<< SEARCH\nc\n=======\nC\n>>>>>>> REPLACE\n" +
		"<<<<<<< SEARCH\na\n=======\nA\n>>>>>>> REPLACE\n" +
		"<<<<<<< SEARCH\nb\n=======\nB\n>>>>>>> REPLACE\n"

	blocks := Parse(diff)
	if len(blocks) != 3 {
		t.Fatalf("Parse() returned %d blocks, want 3", len(blocks))
	}
	wantOrder := []string{"c", "a", "b"}
	for i, want := range wantOrder {
		if blocks[i].Search != want {
			t.Errorf("block %d Search = %q, want %q", i, blocks[i].Search, want)
		}
	}
}
