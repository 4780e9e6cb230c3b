package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/wudi/img2pdf/xref"
)

// VerifyXRef reads the cross-reference table back from a serialized file
// and checks that every in-use entry points at its "N G obj" header.
func VerifyXRef(ctx context.Context, data []byte) error {
	table, err := xref.NewResolver(xref.ResolverConfig{}).Resolve(ctx, bytes.NewReader(data))
	if err != nil {
		return err
	}
	objects := table.Objects()
	if len(objects) == 0 {
		return errors.New("xref table lists no objects")
	}
	for _, num := range objects {
		off, gen, _ := table.Lookup(num)
		if off < 0 || off >= int64(len(data)) {
			return fmt.Errorf("object %d: offset %d outside file", num, off)
		}
		header := strconv.Itoa(num) + " " + strconv.Itoa(gen) + " obj"
		if !bytes.HasPrefix(data[off:], []byte(header)) {
			return fmt.Errorf("object %d: offset %d does not start %q", num, off, header)
		}
	}
	return nil
}
