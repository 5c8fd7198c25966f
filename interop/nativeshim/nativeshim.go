//go:build !ios && !android && (amd64 || arm64)

// Package nativeshim binds interop.Library to a real native shared library
// via purego, with no cgo involved. It is the optional, real-native-code
// counterpart to interop/fake: the bridge works fully against the fake
// without this package, and switches to nativeshim only when a host wants
// genuine native refcounting and v-table dispatch behind the interop
// contract.
//
// The shim library is a small C (or Rust, or anything with a C ABI)
// component exposing the thirteen combridge_* entry points bound in
// registerBindings below.
// Building that component is outside this module's scope (spec §1
// Non-goals); this package only locates, loads, and calls it.
package nativeshim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/combridge/abi"
	"github.com/obinnaokechukwu/combridge/interop"
	"github.com/obinnaokechukwu/combridge/internal/handle"
)

// ErrShimNotFound is returned when the native shim library cannot be found
// on this host.
var ErrShimNotFound = errors.New("nativeshim: shim library not found")

// Library is a purego-backed interop.Library. The zero value is not usable;
// construct with Load.
type Library struct {
	lib uintptr

	createWrapperForObject   func(handle uintptr, vtables uintptr, count int32, flags uint32) uintptr
	createWrapperForExternal func(identity uintptr, flags uint32, ctxSize uintptr, outSize *uintptr, outFromTracker *int32) uintptr
	destroyWrapperForObject  func(mow uintptr)
	destroyWrapperForExternal func(eocStorage uintptr)
	isActiveWrapper          func(mow uintptr) int32
	reactivateWrapper        func(mow uintptr, handle uintptr) int32
	getObjectForWrapper      func(native uintptr, outHandle *uintptr) int32
	isComActivated           func(native uintptr) int32
	markComActivated         func(native uintptr)
	separateFromTracker      func(eocStorage uintptr)
	beginTracking            func(ctxOpaque uintptr) int32
	endTracking              func()
	getIdentityVtable        func(outQI, outAddRef, outRelease *uintptr)

	// trackingMu guards trackingHandle, the handle registered by the most
	// recent successful BeginExternalObjectReferenceTracking so that
	// EndExternalObjectReferenceTracking can release it. The bridge only
	// ever has one tracking window open at a time (gc.go's gcDepth guard),
	// so this is a single field rather than a stack.
	trackingMu     sync.Mutex
	trackingHandle abi.Handle
	trackingLive   bool
}

var _ interop.Library = (*Library)(nil)

var (
	loadOnce sync.Once
	shared   *Library
	loadErr  error
)

// Load finds and loads the native shim library, memoizing the result. It is
// safe to call from multiple goroutines; only the first call does real
// work.
func Load() (*Library, error) {
	loadOnce.Do(func() {
		shared, loadErr = doLoad()
	})
	return shared, loadErr
}

func doLoad() (*Library, error) {
	path, err := findShimLibrary()
	if err != nil {
		return nil, err
	}

	libHandle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("nativeshim: failed to load %s: %w", path, err)
	}

	l := &Library{lib: libHandle}
	l.registerBindings()
	return l, nil
}

func (l *Library) registerBindings() {
	registerOptional(&l.createWrapperForObject, l.lib, "combridge_create_wrapper_for_object")
	registerOptional(&l.createWrapperForExternal, l.lib, "combridge_create_wrapper_for_external")
	registerOptional(&l.destroyWrapperForObject, l.lib, "combridge_destroy_wrapper_for_object")
	registerOptional(&l.destroyWrapperForExternal, l.lib, "combridge_destroy_wrapper_for_external")
	registerOptional(&l.isActiveWrapper, l.lib, "combridge_is_active_wrapper")
	registerOptional(&l.reactivateWrapper, l.lib, "combridge_reactivate_wrapper")
	registerOptional(&l.getObjectForWrapper, l.lib, "combridge_get_object_for_wrapper")
	registerOptional(&l.isComActivated, l.lib, "combridge_is_com_activated")
	registerOptional(&l.markComActivated, l.lib, "combridge_mark_com_activated")
	registerOptional(&l.separateFromTracker, l.lib, "combridge_separate_wrapper_from_tracker_runtime")
	registerOptional(&l.beginTracking, l.lib, "combridge_begin_external_object_reference_tracking")
	registerOptional(&l.endTracking, l.lib, "combridge_end_external_object_reference_tracking")
	registerOptional(&l.getIdentityVtable, l.lib, "combridge_get_identity_vtable")
}

func registerOptional(fptr any, libHandle uintptr, name string) {
	defer func() {
		_ = recover() // purego.RegisterLibFunc panics if the symbol is missing
	}()
	purego.RegisterLibFunc(fptr, libHandle, name)
}

// CreateWrapperForObject implements interop.Library.
func (l *Library) CreateWrapperForObject(h abi.Handle, vtables []uintptr, flags abi.CreateComInterfaceFlags) (abi.WrapperHandle, error) {
	if l.createWrapperForObject == nil {
		return 0, interop.ErrNotLoaded
	}
	var vptr uintptr
	if len(vtables) > 0 {
		vptr = uintptr(unsafe.Pointer(&vtables[0]))
	}
	native := l.createWrapperForObject(uintptr(h), vptr, int32(len(vtables)), uint32(flags))
	if native == 0 {
		return 0, errors.New("nativeshim: CreateWrapperForObject failed")
	}
	return abi.WrapperHandle(native), nil
}

// CreateWrapperForExternal implements interop.Library.
func (l *Library) CreateWrapperForExternal(identity uintptr, flags abi.CreateObjectFlags, ctxSize uintptr) (interop.ExternalStorage, error) {
	if l.createWrapperForExternal == nil {
		return interop.ExternalStorage{}, interop.ErrNotLoaded
	}
	var outSize uintptr
	var outFromTracker int32
	addr := l.createWrapperForExternal(identity, uint32(flags), ctxSize, &outSize, &outFromTracker)
	if addr == 0 {
		return interop.ExternalStorage{}, errors.New("nativeshim: CreateWrapperForExternal failed")
	}
	return interop.ExternalStorage{Addr: addr, Size: outSize, FromTrackerRuntime: outFromTracker != 0}, nil
}

// DestroyWrapperForObject implements interop.Library.
func (l *Library) DestroyWrapperForObject(mow abi.WrapperHandle) {
	if l.destroyWrapperForObject != nil {
		l.destroyWrapperForObject(uintptr(mow))
	}
}

// DestroyWrapperForExternal implements interop.Library.
func (l *Library) DestroyWrapperForExternal(eocStorage uintptr) {
	if l.destroyWrapperForExternal != nil {
		l.destroyWrapperForExternal(eocStorage)
	}
}

// IsActiveWrapper implements interop.Library.
func (l *Library) IsActiveWrapper(mow abi.WrapperHandle) bool {
	if l.isActiveWrapper == nil {
		return false
	}
	return l.isActiveWrapper(uintptr(mow)) != 0
}

// ReactivateWrapper implements interop.Library.
func (l *Library) ReactivateWrapper(mow abi.WrapperHandle, h abi.Handle) error {
	if l.reactivateWrapper == nil {
		return interop.ErrNotLoaded
	}
	if l.reactivateWrapper(uintptr(mow), uintptr(h)) != 0 {
		return errors.New("nativeshim: ReactivateWrapper failed")
	}
	return nil
}

// GetObjectForWrapper implements interop.Library.
func (l *Library) GetObjectForWrapper(native uintptr) (abi.Handle, bool) {
	if l.getObjectForWrapper == nil {
		return 0, false
	}
	var out uintptr
	if l.getObjectForWrapper(native, &out) == 0 {
		return abi.Handle(out), true
	}
	return 0, false
}

// IsComActivated implements interop.Library.
func (l *Library) IsComActivated(native uintptr) bool {
	if l.isComActivated == nil {
		return false
	}
	return l.isComActivated(native) != 0
}

// MarkComActivated implements interop.Library.
func (l *Library) MarkComActivated(native uintptr) {
	if l.markComActivated != nil {
		l.markComActivated(native)
	}
}

// SeparateWrapperFromTrackerRuntime implements interop.Library.
func (l *Library) SeparateWrapperFromTrackerRuntime(eocStorage uintptr) {
	if l.separateFromTracker != nil {
		l.separateFromTracker(eocStorage)
	}
}

// BeginExternalObjectReferenceTracking implements interop.Library.
func (l *Library) BeginExternalObjectReferenceTracking(ctx *interop.TrackingContext) error {
	if l.beginTracking == nil {
		return interop.ErrNotLoaded
	}
	h := handle.Register(ctx)
	if l.beginTracking(uintptr(h)) != 0 {
		handle.Unregister(h)
		return errors.New("nativeshim: BeginExternalObjectReferenceTracking failed")
	}

	l.trackingMu.Lock()
	l.trackingHandle = h
	l.trackingLive = true
	l.trackingMu.Unlock()
	return nil
}

// EndExternalObjectReferenceTracking implements interop.Library. It releases
// the handle BeginExternalObjectReferenceTracking registered for ctx, since
// nothing else ever unregisters it once the tracking window closes.
func (l *Library) EndExternalObjectReferenceTracking() {
	if l.endTracking != nil {
		l.endTracking()
	}

	l.trackingMu.Lock()
	h, live := l.trackingHandle, l.trackingLive
	l.trackingLive = false
	l.trackingMu.Unlock()
	if live {
		handle.Unregister(h)
	}
}

// GetIdentityVtableImpl implements interop.Library.
func (l *Library) GetIdentityVtableImpl() abi.IdentityVtable {
	if l.getIdentityVtable == nil {
		return abi.IdentityVtable{}
	}
	var qi, addref, release uintptr
	l.getIdentityVtable(&qi, &addref, &release)
	return abi.IdentityVtable{QueryInterface: qi, AddRef: addref, Release: release}
}

func findShimLibrary() (string, error) {
	var names []string
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd", "netbsd":
		names = []string{"libcombridgeshim.so"}
	case "darwin":
		names = []string{"libcombridgeshim.dylib"}
	case "windows":
		names = []string{"combridgeshim.dll"}
	default:
		return "", fmt.Errorf("%w: unsupported platform %s/%s", ErrShimNotFound, runtime.GOOS, runtime.GOARCH)
	}

	if dir := os.Getenv("COMBRIDGE_SHIM_DIR"); dir != "" {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		return "", fmt.Errorf("%w: COMBRIDGE_SHIM_DIR=%s does not contain %s", ErrShimNotFound, dir, names[0])
	}

	searchPaths := []string{"/usr/local/lib", "/usr/lib", "/lib"}
	if wd, err := os.Getwd(); err == nil {
		searchPaths = append(searchPaths, wd)
	}
	for _, dir := range searchPaths {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("%w: searched %v for %v (set COMBRIDGE_SHIM_DIR to override)", ErrShimNotFound, searchPaths, names)
}
