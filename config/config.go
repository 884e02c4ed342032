// Package config loads layered YAML configuration with viper. Files are
// read from BasePath in this order, later files overriding earlier ones:
//
//	config.yaml, config.local.yaml, config.{mode}.yaml, config.{mode}.local.yaml
//
// Environment variables named {PREFIX}_{SECTION}_{KEY} override files.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Validator interface {
	Validate() error
}

type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	Mode      Mode
}

// Config is a loaded, reloadable set of config files.
type Config struct {
	mu       sync.RWMutex
	instance *viper.Viper
	opts     Options
	files    []string
}

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}
	return Options{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "PLUGINHUB",
		Mode:      CurrentMode(),
	}
}

func NewConfig(optsArr ...Options) (*Config, error) {
	opts := DefaultOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}
	if opts.Mode == "" {
		opts.Mode = CurrentMode()
	}

	files := getConfigFilePaths(opts)
	instance, err := createViper(opts, files)
	if err != nil {
		return nil, err
	}
	return &Config{instance: instance, opts: opts, files: files}, nil
}

// Files returns the config files that were found, in load order.
func (c *Config) Files() []string {
	return slices.Clone(c.files)
}

func (c *Config) Mode() Mode {
	return c.opts.Mode
}

// BindWithDefaults fills instance with struct defaults, then with the
// loaded config, and validates it when it implements Validator.
func (c *Config) BindWithDefaults(instance any) error {
	if err := defaults.Set(instance); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Known keys let AutomaticEnv reach settings absent from every file.
	registerDefaults(c.instance, "", reflect.ValueOf(instance))
	if err := c.instance.Unmarshal(instance); err != nil {
		return fmt.Errorf("failed to unmarshal config (path: %s, file: %s.%s): %w",
			c.opts.BasePath, c.opts.FileName, c.opts.FileType, err)
	}

	if v, ok := instance.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance.Get(key)
}

// Reload re-reads the config files found at startup.
func (c *Config) Reload() error {
	instance, err := createViper(c.opts, c.files)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.instance = instance
	c.mu.Unlock()
	return nil
}

// Watch reloads the config whenever one of the loaded files changes and
// calls fn with the reload result. It returns once the watcher is set up
// and stops when ctx ends.
func (c *Config) Watch(ctx context.Context, fn func(err error)) error {
	if len(c.files) == 0 {
		return errors.New("no config files to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch directories: editors replace files by rename.
	watched := make(map[string]struct{}, len(c.files))
	for _, file := range c.files {
		abs, err := filepath.Abs(file)
		if err != nil {
			watcher.Close()
			return err
		}
		watched[abs] = struct{}{}
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, relevant := watched[filepath.Clean(event.Name)]; !relevant {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				fn(c.Reload())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fn(err)
			}
		}
	}()
	return nil
}

func createViper(opts Options, files []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	for _, configPath := range files {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
		if err := v.MergeConfigMap(tempV.AllSettings()); err != nil {
			return nil, fmt.Errorf("error merging config file %s: %w", configPath, err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	return v, nil
}

func getConfigFilePaths(opts Options) (configFiles []string) {
	fileNames := []string{opts.FileName, opts.FileName + ".local"}
	for _, suffix := range opts.Mode.fileSuffixes() {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, suffix),
			fmt.Sprintf("%s.%s.local", opts.FileName, suffix))
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			configFiles = append(configFiles, file)
		}
	}
	return configFiles
}

var durationType = reflect.TypeOf(time.Duration(0))

// registerDefaults walks mapstructure tags and registers every leaf value
// as a viper default.
func registerDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if !field.IsExported() || tag == "-" {
			continue
		}
		if tag == "" {
			tag = strings.ToLower(field.Name)
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type() != durationType && fv.Type() != reflect.TypeOf(time.Time{}) {
			registerDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
