package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// AssetInfo describes one indexed file. Path is relative to the asset
// directory and slash separated.
type AssetInfo struct {
	Path         string
	Type         metadata.ResourceType
	LastModified time.Time
}

// ReloadEvent reports a created or modified asset.
type ReloadEvent struct {
	Path string
	Type metadata.ResourceType
	Time time.Time
}

// AssetManager indexes the asset directory, loads files through the loader
// registered for their type and, when watching, queues a ReloadEvent for
// every changed file until DrainReloads is called.
type AssetManager struct {
	config  core.AssetsConfig
	root    string
	loaders map[metadata.ResourceType]Loader

	mutex   sync.Mutex
	assets  map[string]AssetInfo
	reloads *containers.RingQueue[ReloadEvent]
	pending map[string]struct{}
	dropped int

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
	isClosed bool
}

func NewAssetManager(config core.AssetsConfig) (*AssetManager, error) {
	root, err := filepath.Abs(config.Directory)
	if err != nil {
		return nil, fmt.Errorf("invalid asset directory %s: %w", config.Directory, err)
	}
	queueSize := config.ReloadQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}

	am := &AssetManager{
		config:  config,
		root:    root,
		loaders: make(map[metadata.ResourceType]Loader),
		assets:  make(map[string]AssetInfo),
		reloads: containers.NewRingQueue[ReloadEvent](queueSize),
		pending: make(map[string]struct{}),
		done:    make(chan struct{}),
	}
	am.registerLoader(metadata.ResourceTypeImage, &loaders.ImageLoader{})
	am.registerLoader(metadata.ResourceTypeBitmapFont, &loaders.BitmapFontLoader{})
	am.registerLoader(metadata.ResourceTypeSystemFont, &loaders.SystemFontLoader{})
	return am, nil
}

// Initialize indexes the asset directory and starts the watcher when
// watching is enabled. A missing directory is not an error.
func (am *AssetManager) Initialize() error {
	if _, err := os.Stat(am.root); os.IsNotExist(err) {
		core.LogWarn("asset directory %s does not exist, nothing indexed", am.root)
		return nil
	}
	if err := am.index(am.root); err != nil {
		return err
	}
	if !am.config.Watch {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create the asset watcher: %w", err)
	}
	am.fsnotify = watcher
	if err := am.watchRecursive(am.root); err != nil {
		watcher.Close()
		am.fsnotify = nil
		return err
	}

	am.wg.Add(1)
	go am.start()
	core.LogInfo("watching %s for asset changes", am.root)
	return nil
}

func (am *AssetManager) registerLoader(assetType metadata.ResourceType, loader Loader) {
	am.loaders[assetType] = loader
}

// Root is the absolute asset directory.
func (am *AssetManager) Root() string {
	return am.root
}

// Watching reports whether file changes are being tracked.
func (am *AssetManager) Watching() bool {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	return am.fsnotify != nil && !am.isClosed
}

// Load reads an asset with the loader of its type. path is relative to
// the asset directory.
func (am *AssetManager) Load(path string) (*metadata.Resource, error) {
	assetType := determineAssetType(path)
	loader, ok := am.loaders[assetType]
	if !ok {
		return nil, fmt.Errorf("no loader registered for %s (%s)", path, assetType)
	}
	res, err := loader.Load(filepath.Join(am.root, filepath.FromSlash(path)))
	if err != nil {
		return nil, err
	}
	res.Name = path
	return res, nil
}

func (am *AssetManager) Unload(res *metadata.Resource) error {
	loader, ok := am.loaders[res.Type]
	if !ok {
		return fmt.Errorf("no loader registered for %s", res.Type)
	}
	return loader.Unload(res)
}

// Assets lists the indexed files sorted by path.
func (am *AssetManager) Assets() []AssetInfo {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	out := make([]AssetInfo, 0, len(am.assets))
	for _, a := range am.assets {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b AssetInfo) int {
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

func (am *AssetManager) Asset(path string) (AssetInfo, bool) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	a, ok := am.assets[path]
	return a, ok
}

// DrainReloads returns the queued reloads in arrival order and empties the
// queue. A file changed several times between two drains is reported once.
func (am *AssetManager) DrainReloads() []ReloadEvent {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	out := make([]ReloadEvent, 0, am.reloads.Len())
	for !am.reloads.IsEmpty() {
		ev, _ := am.reloads.Dequeue()
		delete(am.pending, ev.Path)
		out = append(out, ev)
	}
	return out
}

// Notify queues a reload of path, relative to the asset directory, as if
// the watcher had seen it change.
func (am *AssetManager) Notify(path string) {
	am.handleFileEvent(filepath.ToSlash(path), true)
}

// Dropped counts reloads lost because the queue was full.
func (am *AssetManager) Dropped() int {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	return am.dropped
}

// Shutdown stops the watcher. Calling it twice returns ErrWatcherClosed.
func (am *AssetManager) Shutdown() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return core.ErrWatcherClosed
	}
	am.isClosed = true
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if am.fsnotify != nil {
		return am.fsnotify.Close()
	}
	return nil
}

func (am *AssetManager) start() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.fsnotify.Events:
			if !ok {
				return
			}
			am.handleEvent(e)

		case err, ok := <-am.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	if e.Op&fsnotify.Create != 0 {
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.watchRecursive(e.Name); err != nil {
				core.LogWarn("failed to watch %s: %s", e.Name, err)
			}
			return
		}
	}
	rel, ok := am.relative(e.Name)
	if !ok {
		return
	}
	if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
		am.handleFileEvent(rel, true)
	}
	// A removed directory cannot be told apart from a file anymore.
	if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		am.removeAsset(rel)
	}
}

// watchRecursive adds the directory and every sub directory to the watch
// list, indexing the files found on the way. Files created before the
// watch is in place are picked up by the walk.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		if rel, ok := am.relative(walkPath); ok {
			am.handleFileEvent(rel, false)
		}
		return nil
	})
}

func (am *AssetManager) index(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if rel, ok := am.relative(walkPath); ok {
			am.handleFileEvent(rel, false)
		}
		return nil
	})
}

func (am *AssetManager) relative(path string) (string, bool) {
	rel, err := filepath.Rel(am.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// handleFileEvent indexes the file at path and queues a reload for it when
// queue is set.
func (am *AssetManager) handleFileEvent(path string, queue bool) {
	assetType := determineAssetType(path)
	if assetType == metadata.ResourceTypeNone {
		return
	}
	now := time.Now()

	am.mutex.Lock()
	defer am.mutex.Unlock()

	am.assets[path] = AssetInfo{Path: path, Type: assetType, LastModified: now}
	if !queue {
		return
	}
	if _, ok := am.pending[path]; ok {
		return
	}
	if err := am.reloads.Enqueue(ReloadEvent{Path: path, Type: assetType, Time: now}); err != nil {
		am.dropped++
		core.LogWarn("reload of %s dropped: %s", path, err)
		return
	}
	am.pending[path] = struct{}{}
}

// Remove the asset from the index if it was deleted
func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()

	delete(am.assets, path)
}

func determineAssetType(path string) metadata.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp":
		return metadata.ResourceTypeImage
	case ".fnt":
		return metadata.ResourceTypeBitmapFont
	case ".ttf", ".otf", ".fontcfg":
		return metadata.ResourceTypeSystemFont
	default:
		return metadata.ResourceTypeNone
	}
}
