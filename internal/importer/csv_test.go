package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/credsync/internal/model"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.ImportRecord
	}{
		{
			name: "chrome export",
			input: "name,url,username,password,note\n" +
				"GitHub,https://github.com/login,alice,s3cret,work\n" +
				"Mail,https://mail.example.com,,p2,\n",
			want: []model.ImportRecord{
				{URL: "https://github.com/login", Username: "alice", Password: "s3cret", Notes: "work"},
				{URL: "https://mail.example.com", Password: "p2"},
			},
		},
		{
			name: "bitwarden style with bom",
			input: "\ufefffolder,login_uri,login_username,login_password,notes\n" +
				"work,gitlab.com,bob,pw,\"multi\nline\"\n",
			want: []model.ImportRecord{
				{URL: "gitlab.com", Username: "bob", Password: "pw", Notes: "multi\nline"},
			},
		},
		{
			name:  "rows without url skipped",
			input: "url,username,password\n,ghost,x\nexample.org,carol,y\n",
			want:  []model.ImportRecord{{URL: "example.org", Username: "carol", Password: "y"}},
		},
		{
			name:  "short rows tolerated",
			input: "url,username,password\nexample.org\n",
			want:  []model.ImportRecord{{URL: "example.org"}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCSV_NoURLColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("title,secret\na,b\n"))
	assert.ErrorIs(t, err, ErrNoURLColumn)
}

func TestParseCSV_Malformed(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("url,password\n\"unterminated,x\n"))
	assert.Error(t, err)
}
