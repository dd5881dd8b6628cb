// Package prelude registers every built-in provider in provider.Default.
package prelude

import (
	_ "github.com/radiofrance/imgtag/pkg/provider/azure"
	_ "github.com/radiofrance/imgtag/pkg/provider/cloudinary"
	_ "github.com/radiofrance/imgtag/pkg/provider/imgix"
	_ "github.com/radiofrance/imgtag/pkg/provider/s3"
	_ "github.com/radiofrance/imgtag/pkg/provider/static"
)
