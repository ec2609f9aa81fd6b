package epub

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildEPUB writes a minimal EPUB whose OPF lives at opfPath. When
// withContainer is false, META-INF/container.xml is left out.
func buildEPUB(t *testing.T, opfPath, opfXML string, withContainer bool) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	require.NoError(t, err)
	_, err = w.Write([]byte("application/epub+zip"))
	require.NoError(t, err)

	if withContainer {
		w, err = zw.Create(containerPath)
		require.NoError(t, err)
		_, err = w.Write([]byte(`<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="` + opfPath + `" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`))
		require.NoError(t, err)
	}

	w, err = zw.Create(opfPath)
	require.NoError(t, err)
	_, err = w.Write([]byte(opfXML))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}
