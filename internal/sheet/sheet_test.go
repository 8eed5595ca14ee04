package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeventeLantos/sms-campaign/internal/model"
)

func TestRead_CSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "customers.csv")
	content := "\ufeffphone_number,first_name, birthday\n" +
		"5551234567.0,Ann,1990-01-05\n" +
		",,\n" +
		"+15559876543,\"Lee, Jr\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	tbl, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"phone_number", "first_name", "birthday"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "5551234567.0", tbl.Records[0]["phone_number"])
	assert.Equal(t, "Lee, Jr", tbl.Records[1]["first_name"])
	assert.Equal(t, "", tbl.Records[1]["birthday"])
}

func TestWriteRead_RoundTripPreservesColumnOrder(t *testing.T) {
	t.Parallel()

	for _, ext := range []string{".csv", ".xlsx"} {
		ext := ext
		t.Run(ext, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "nested", "roster"+ext)
			in := model.NewRoster([]string{"phone_number", "SMS_Opt_Out", "notes"},
				model.Record{"phone_number": "+15551234567", "SMS_Opt_Out": "Yes", "notes": "a,b"},
				model.Record{"phone_number": "+15559876543", "SMS_Opt_Out": "No"},
			)
			require.NoError(t, Write(path, in))
			assert.True(t, Exists(path))

			out, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, in.Columns, out.Columns)
			require.Equal(t, 2, out.Len())
			assert.Equal(t, "a,b", out.Records[0]["notes"])
			assert.Equal(t, "Yes", out.Records[0]["SMS_Opt_Out"])
			assert.Equal(t, "+15559876543", out.Records[1]["phone_number"])

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1)
		})
	}
}

func TestRead_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "x.json"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.True(t, errors.Is(Write(filepath.Join(t.TempDir(), "x.txt"), model.NewRoster(nil)), ErrUnsupportedFormat))
}

func TestRead_Missing(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRead_BlankHeaderNamed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "c.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,,c\n1,2,3\n"), 0o644))

	tbl, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "Unnamed: 1", "c"}, tbl.Columns)
	assert.Equal(t, "2", tbl.Records[0]["Unnamed: 1"])
}

func TestInfo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	fi, err := Info(filepath.Join(dir, "none.csv"))
	require.NoError(t, err)
	assert.False(t, fi.Exists)
	assert.Equal(t, "none.csv", fi.Name)

	path := filepath.Join(dir, "c.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n2\n"), 0o644))

	fi, err = Info(path)
	require.NoError(t, err)
	assert.True(t, fi.Exists)
	assert.Equal(t, 2, fi.Rows)
	assert.Positive(t, fi.Size)
	assert.False(t, fi.Modified.IsZero())
}
