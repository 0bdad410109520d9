package experiment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	xe "github.com/pombredanne/facereclib/pkg/errors"
	"gopkg.in/yaml.v3"
)

// load an experiment config from a file.
//
// A relative fileList in the database section is resolved against
// the directory of the config file.
//
// returns *ExperimentConfig, error:
//
//	When loading success, returns `(*ExperimentConfig, nil)`.
//	Otherwise, returns `(nil, error)` which is xe.ErrConfiguration .
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, xe.Configuration("config file is not found: %s", path)
	} else if err != nil {
		return nil, xe.Wrap(err)
	}

	conf, err := Unmarshal(content)
	if err != nil {
		return nil, err
	}

	if conf.database.kind == FileList && !filepath.IsAbs(conf.database.fileList) {
		conf.database.fileList = filepath.Join(filepath.Dir(path), conf.database.fileList)
	}
	return conf, nil
}

// Unmarshal parses and validates an experiment config.
//
// Misconfigurations are reported as xe.ErrConfiguration .
func Unmarshal(conf []byte) (out *ExperimentConfig, err error) {
	var _out *ExperimentConfigMarshall
	if err := yaml.Unmarshal(conf, &_out); err != nil {
		return nil, xe.Configuration("broken yaml: %v", err)
	}
	if _out == nil {
		return nil, xe.Configuration("config is empty")
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		out = nil
		err = xe.Configuration("%s", fmt.Sprint(r))
	}()

	return TrySeal(_out), nil
}
