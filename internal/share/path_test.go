package share

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relayonprem/control-plane/internal/store"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name string
		kind store.ShareKind
		path string
		want error
	}{
		{"doc markdown", store.ShareKindDoc, "notes/meeting.md", nil},
		{"doc canvas", store.ShareKindDoc, "boards/plan.canvas", nil},
		{"doc uppercase extension", store.ShareKindDoc, "notes/MEETING.MD", nil},
		{"folder no extension", store.ShareKindFolder, "projects/alpha", nil},
		{"empty", store.ShareKindDoc, "", ErrEmptyPath},
		{"traversal", store.ShareKindDoc, "notes/../secret.md", ErrPathTraversal},
		{"traversal backslash", store.ShareKindFolder, "notes\\..\\secret", ErrPathTraversal},
		{"null byte", store.ShareKindDoc, "notes/a\x00b.md", ErrPathNullByte},
		{"absolute slash", store.ShareKindDoc, "/etc/passwd.md", ErrAbsolutePath},
		{"absolute backslash", store.ShareKindFolder, "\\share", ErrAbsolutePath},
		{"drive letter", store.ShareKindDoc, "C:/notes.md", ErrAbsolutePath},
		{"too long", store.ShareKindFolder, strings.Repeat("a", 513), ErrPathTooLong},
		{"doc bad extension", store.ShareKindDoc, "notes/script.sh", ErrBadDocExtension},
		{"doc no extension", store.ShareKindDoc, "notes/readme", ErrBadDocExtension},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.kind, tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFolderPrefix(t *testing.T) {
	assert.Equal(t, "projects/", folderPrefix("projects"))
	assert.Equal(t, "projects/", folderPrefix("projects/"))
}

func TestWithinFolder(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		file   string
		want   bool
	}{
		{"direct child", "projects", "projects/plan.md", true},
		{"nested child", "projects", "projects/alpha/notes.md", true},
		{"trailing slash folder", "projects/", "projects/plan.md", true},
		{"sibling folder", "projects", "projects-archive/plan.md", false},
		{"unrelated folder", "teamdocs", "public/note.md", false},
		{"folder itself", "projects", "projects", false},
		{"prefix only", "projects", "projects/", false},
		{"parent of folder", "projects/alpha", "projects/plan.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinFolder(tt.folder, tt.file))
		})
	}
}
