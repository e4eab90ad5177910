package config

import "errors"

var (
	// ErrNoEntries indicates the configuration declares no entry points
	ErrNoEntries = errors.New("no entry points configured")
	// ErrDuplicateEntry indicates two entries share a name
	ErrDuplicateEntry = errors.New("duplicate entry name")
	// ErrInvalidEntry indicates an entry with an empty name or no source paths
	ErrInvalidEntry = errors.New("invalid entry")
	// ErrEntryNotFound indicates an entry source path that does not exist
	ErrEntryNotFound = errors.New("entry source not found")
	// ErrInvalidPattern indicates a rule test or exclude that is not a valid regular expression
	ErrInvalidPattern = errors.New("invalid rule pattern")
	// ErrInvalidRule indicates a rule without exactly one of use or type
	ErrInvalidRule = errors.New("invalid rule")
	// ErrUnknownAssetType indicates a rule type outside the supported set
	ErrUnknownAssetType = errors.New("unknown asset type")
	// ErrUnknownLoader indicates a rule names an unsupported loader or passes it bad options
	ErrUnknownLoader = errors.New("unknown loader")
	// ErrOutputCollision indicates two outputs resolve to the same filename
	ErrOutputCollision = errors.New("multiple outputs emit to the same filename")
	// ErrInvalidOutput indicates an unusable output section
	ErrInvalidOutput = errors.New("invalid output configuration")
	// ErrUnknownPlugin indicates a plugin name with no implementation
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrUnknownPluginOption indicates plugin options that do not fit the plugin
	ErrUnknownPluginOption = errors.New("invalid plugin options")
	// ErrInvalidMode indicates a mode outside development, production and none
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidDevtool indicates an unsupported devtool value
	ErrInvalidDevtool = errors.New("invalid devtool")
	// ErrInvalidTarget indicates an unsupported target value
	ErrInvalidTarget = errors.New("invalid target")
	// ErrUnsupportedFormat indicates a configuration file extension we cannot parse
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)
