package assets

import "github.com/spaghettifunk/tessera/engine/renderer/metadata"

// Loader turns a file into a Resource whose Data depends on the loader.
type Loader interface {
	Load(path string) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
