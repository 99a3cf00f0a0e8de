package runtime

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"rentchat/errors"
)

func TestBlocklistLoader_Dedupes_And_Skips_Comments(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"blocklist/en.txt": &fstest.MapFile{Data: []byte(
			"# contact exchange\nwhatsapp\nTelegram\n\nwhatsapp\n")},
		"blocklist/fr.txt": &fstest.MapFile{Data: []byte(
			"telegram\nmandat cash\n")},
	}

	data, err := NewBlocklistLoader(fsys).LoadAll("blocklist")
	req.NoError(err)

	// Then languages come from file names and terms are lowercased,
	// deduplicated across files and sorted
	req.Equal([]string{"en", "fr"}, data.Languages)
	req.Equal([]string{"mandat cash", "telegram", "whatsapp"}, data.Terms)
}

func TestBlocklistLoader_Rejects_Empty_Blocklist(t *testing.T) {
	req := require.New(t)
	fsys := fstest.MapFS{
		"blocklist/en.txt": &fstest.MapFile{Data: []byte("# nothing but comments\n\n")},
	}

	_, err := NewBlocklistLoader(fsys).LoadAll("blocklist")
	req.ErrorIs(err, errors.ErrEmptyBlocklist)
}

func TestLoadDefaultBlocklist_Ships_Terms(t *testing.T) {
	req := require.New(t)

	data, err := LoadDefaultBlocklist()
	req.NoError(err)
	req.Contains(data.Languages, "en")
	req.Contains(data.Languages, "fr")
	req.Contains(data.Terms, "whatsapp")
}
