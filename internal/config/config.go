// Package config loads consolidation options from viper.
//
// Options live under the "options" key and forced values under "overrides":
//
//	options:
//	  allow-private-objc-class-symbols: true
//	  version: v1
//	overrides:
//	  install-name: /usr/lib/libFoo.dylib
//	  current-version: 1.2
package config

import (
	"strconv"

	tbd "github.com/appsworld/go-tbd"
	"github.com/appsworld/go-tbd/types"
	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Override keys, relative to "overrides".
const (
	KeyInstallName    = "install-name"
	KeyCurrentVersion = "current-version"
	KeyCompatVersion  = "compatibility-version"
	KeyPlatform       = "platform"
	KeyParentUmbrella = "parent-umbrella"
	KeyObjcConstraint = "objc-constraint"
	KeySwiftVersion   = "swift-version"
)

type file struct {
	Options tbd.Options `mapstructure:"options"`
}

// Load returns the options described by v, including any bound flags.
func Load(v *viper.Viper) (*tbd.Options, error) {
	cfg := file{Options: *tbd.DefaultOptions()}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode options")
	}
	opts := &cfg.Options

	ver, err := tbd.ParseVersion(v.GetString("options.version"))
	if err != nil {
		return nil, err
	}
	opts.Version = ver

	if err := loadOverrides(v, &opts.Overrides); err != nil {
		return nil, err
	}
	return opts, nil
}

// OverrideKeys lists every override key in the order they are applied.
var OverrideKeys = []string{
	KeyInstallName,
	KeyCurrentVersion,
	KeyCompatVersion,
	KeyPlatform,
	KeyParentUmbrella,
	KeyObjcConstraint,
	KeySwiftVersion,
}

func loadOverrides(v *viper.Viper, o *tbd.Overrides) error {
	for _, key := range OverrideKeys {
		s, err := cast.ToStringE(v.Get("overrides." + key))
		if err != nil {
			return errors.Wrapf(err, "overrides.%s", key)
		}
		if s == "" {
			continue
		}
		if err := SetOverride(o, key, s); err != nil {
			return err
		}
	}
	return nil
}

// SetOverride parses value and forces the field named by key.
func SetOverride(o *tbd.Overrides, key, value string) error {
	switch key {
	case KeyInstallName:
		o.InstallName = value
	case KeyParentUmbrella:
		o.ParentUmbrella = value
	case KeyCurrentVersion, KeyCompatVersion:
		ver, err := ParseVersion(value)
		if err != nil {
			return errors.Wrap(err, key)
		}
		if key == KeyCurrentVersion {
			o.CurrentVersion = &ver
		} else {
			o.CompatVersion = &ver
		}
	case KeyPlatform:
		p, err := types.ParsePlatform(value)
		if err != nil {
			return err
		}
		o.Platform = p
	case KeyObjcConstraint:
		c, ok := tbd.ParseObjcConstraint(value)
		if !ok || c == tbd.ObjcNone {
			return errors.Errorf("unknown objc constraint %q", value)
		}
		o.ObjcConstraint = c
	case KeySwiftVersion:
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil || n == 0 {
			return errors.Errorf("invalid swift version %q", value)
		}
		swift := uint32(n)
		o.SwiftVersion = &swift
	default:
		return errors.Errorf("unknown override %q", key)
	}
	return nil
}

// ParseVersion parses a dotted version such as "1", "10.4" or "1.2.3" into
// the packed form used by LC_ID_DYLIB.
func ParseVersion(s string) (types.Version, error) {
	v, err := version.NewVersion(s)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid version %q", s)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return 0, errors.Errorf("invalid version %q: pre-release and build metadata are not allowed", s)
	}
	seg := v.Segments()
	if len(seg) > 3 {
		for _, n := range seg[3:] {
			if n != 0 {
				return 0, errors.Errorf("invalid version %q: too many components", s)
			}
		}
	}
	if seg[0] > 0xffff || seg[1] > 0xff || seg[2] > 0xff {
		return 0, errors.Errorf("invalid version %q: component out of range", s)
	}
	return types.NewVersion(uint16(seg[0]), uint8(seg[1]), uint8(seg[2])), nil
}
