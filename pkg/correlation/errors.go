package correlation

import "errors"

// ErrScanNotFound covers both unresolved scan ids and ownership
// mismatches. The two cases are deliberately indistinguishable so callers
// cannot probe for the existence of other users' scans.
var ErrScanNotFound = errors.New("scan not found")
