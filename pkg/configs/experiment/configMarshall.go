package experiment

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

type Marshalled[S any] interface {
	trySeal(string) S
}

// seal marshalled object.
//
// this function CAN CAUSE PANIC if misconfiguration is found.
// Use Unmarshal to get an error instead.
func TrySeal[S any](conf Marshalled[S]) S {
	return conf.trySeal("(root)")
}

// Configuration of an experiment.
//
// This type is marshalling value and mutable.
// Consider to use immutable version, `ExperimentConfig`.
type ExperimentConfigMarshall struct {
	Name         string                  `yaml:"name"`
	Baseline     string                  `yaml:"baseline,omitempty"`
	Database     *DatabaseConfigMarshall `yaml:"database"`
	Preprocessor *ToolConfigMarshall     `yaml:"preprocessor"`
	Features     *ToolConfigMarshall     `yaml:"features"`
	Tool         *ToolConfigMarshall     `yaml:"tool"`
	Directories  *DirectoriesMarshall    `yaml:"directories"`
	Files        FileNames               `yaml:"files,omitempty"`
	Keywords     map[string]StageOptions `yaml:"keywords,omitempty"`
	Grid         *GridConfigMarshall     `yaml:"grid,omitempty"`
}

var _ Marshalled[*ExperimentConfig] = &ExperimentConfigMarshall{}

func (em *ExperimentConfigMarshall) trySeal(path string) *ExperimentConfig {
	baseline := em.Baseline
	if baseline == "" {
		baseline = DefaultBaseline
	}

	dirs := nonnil(em.Directories, path+".directories").trySeal(path + ".directories")
	dirs.Names = em.Files.withDefaults()

	keywords := map[string]StageOptions{}
	for k, v := range em.Keywords {
		keywords[k] = v.Clone()
	}

	grid := em.Grid
	if grid == nil {
		grid = &GridConfigMarshall{}
	}

	return &ExperimentConfig{
		name:         required(em.Name, path+".name"),
		baseline:     baseline,
		database:     nonnil(em.Database, path+".database").trySeal(path + ".database"),
		preprocessor: nonnil(em.Preprocessor, path+".preprocessor").trySeal(path + ".preprocessor"),
		features:     nonnil(em.Features, path+".features").trySeal(path + ".features"),
		tool:         nonnil(em.Tool, path+".tool").trySeal(path + ".tool"),
		directories:  dirs,
		keywords:     keywords,
		grid:         grid.trySeal(path + ".grid"),
	}
}

type DatabaseConfigMarshall struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind,omitempty"`
	FileList string `yaml:"fileList,omitempty"`
	URL      string `yaml:"url,omitempty"`
	Protocol string `yaml:"protocol"`

	OriginalDirectory string `yaml:"originalDirectory"`
	OriginalExtension string `yaml:"originalExtension"`

	AnnotationDirectory string `yaml:"annotationDirectory,omitempty"`
	AnnotationExtension string `yaml:"annotationExtension,omitempty"`
	FirstAnnotation     int    `yaml:"firstAnnotation,omitempty"`

	Options StageOptions `yaml:"options,omitempty"`
}

func (dm *DatabaseConfigMarshall) trySeal(path string) *DatabaseConfig {
	kind := dm.Kind
	if kind == "" {
		kind = FileList
	}

	conf := &DatabaseConfig{
		name:                required(dm.Name, path+".name"),
		kind:                kind,
		protocol:            required(dm.Protocol, path+".protocol"),
		originalDirectory:   required(dm.OriginalDirectory, path+".originalDirectory"),
		originalExtension:   required(dm.OriginalExtension, path+".originalExtension"),
		annotationDirectory: dm.AnnotationDirectory,
		annotationExtension: dm.AnnotationExtension,
		firstAnnotation:     dm.FirstAnnotation,
		options:             dm.Options.Clone(),
	}

	switch kind {
	case FileList:
		conf.fileList = required(dm.FileList, path+".fileList")
	case Postgres:
		conf.url = required(dm.URL, path+".url")
	default:
		panic(fmt.Sprintf("%s.kind should be %s or %s, but %s", path, FileList, Postgres, kind))
	}

	if conf.annotationDirectory != "" && conf.annotationExtension == "" {
		conf.annotationExtension = ".pos"
	}
	if conf.firstAnnotation < 0 {
		panic(path + ".firstAnnotation should not be negative")
	}

	return conf
}

type ToolConfigMarshall struct {
	Name   string    `yaml:"name"`
	Params yaml.Node `yaml:"params,omitempty"`
}

func (tm *ToolConfigMarshall) trySeal(path string) *ToolConfig {
	return &ToolConfig{
		name:   required(tm.Name, path+".name"),
		params: tm.Params,
	}
}

type DirectoriesMarshall struct {
	Temp        string `yaml:"temp"`
	User        string `yaml:"user"`
	Subdir      string `yaml:"subdir,omitempty"`
	ScoreSubdir string `yaml:"scoreSubdir,omitempty"`
}

func (dm *DirectoriesMarshall) trySeal(path string) Directories {
	scoreSubdir := dm.ScoreSubdir
	if scoreSubdir == "" {
		scoreSubdir = "scores"
	}
	return Directories{
		Temp:        filepath.Join(required(dm.Temp, path+".temp"), dm.Subdir),
		User:        filepath.Join(required(dm.User, path+".user"), dm.Subdir),
		ScoreSubdir: scoreSubdir,
	}
}

type GridConfigMarshall struct {
	Chunks        ChunksMarshall                  `yaml:"chunks,omitempty"`
	Queues        map[string]*QueueConfigMarshall `yaml:"queues,omitempty"`
	Kubernetes    *KubernetesConfigMarshall       `yaml:"kubernetes,omitempty"`
	QueueDatabase string                          `yaml:"queueDatabase,omitempty"`
	SigningKeyEnv string                          `yaml:"signingKeyEnv,omitempty"`
	Port          int32                           `yaml:"port,omitempty"`
}

func (gm *GridConfigMarshall) trySeal(path string) *GridConfig {
	queues := map[string]QueueConfig{}
	for name, q := range gm.Queues {
		queues[name] = nonnil(q, path+".queues."+name).trySeal(path + ".queues." + name)
	}
	if _, ok := queues[DefaultQueue]; !ok {
		queues[DefaultQueue] = QueueConfig{
			CPU:    resource.MustParse("1"),
			Memory: resource.MustParse("2Gi"),
		}
	}

	signingKey := gm.SigningKeyEnv
	if signingKey == "" {
		signingKey = "FACEVERIFY_SIGNING_KEY"
	}
	port := gm.Port
	if port == 0 {
		port = 8080
	}

	var kube *KubernetesConfig
	if gm.Kubernetes != nil {
		kube = gm.Kubernetes.trySeal(path + ".kubernetes")
	}

	return &GridConfig{
		chunks:     gm.Chunks.trySeal(path + ".chunks"),
		queues:     queues,
		kubernetes: kube,
		queueDB:    gm.QueueDatabase,
		signingKey: signingKey,
		port:       port,
	}
}

type ChunksMarshall struct {
	Images            int `yaml:"images,omitempty"`
	Features          int `yaml:"features,omitempty"`
	Projections       int `yaml:"projections,omitempty"`
	ModelsPerEnrolJob int `yaml:"modelsPerEnrolJob,omitempty"`
	ModelsPerScoreJob int `yaml:"modelsPerScoreJob,omitempty"`
}

func (cm ChunksMarshall) trySeal(path string) Chunks {
	size := func(v int, def int, name string) int {
		if v < 0 {
			panic(fmt.Sprintf("%s.%s should be positive", path, name))
		}
		if v == 0 {
			return def
		}
		return v
	}
	return Chunks{
		Images:            size(cm.Images, 1000, "images"),
		Features:          size(cm.Features, 1000, "features"),
		Projections:       size(cm.Projections, 1000, "projections"),
		ModelsPerEnrolJob: size(cm.ModelsPerEnrolJob, 20, "modelsPerEnrolJob"),
		ModelsPerScoreJob: size(cm.ModelsPerScoreJob, 20, "modelsPerScoreJob"),
	}
}

type QueueConfigMarshall struct {
	CPU    string `yaml:"cpu"`
	Memory string `yaml:"memory"`
}

func (qm *QueueConfigMarshall) trySeal(path string) QueueConfig {
	return QueueConfig{
		CPU:    quantity(required(qm.CPU, path+".cpu"), path+".cpu"),
		Memory: quantity(required(qm.Memory, path+".memory"), path+".memory"),
	}
}

type KubernetesConfigMarshall struct {
	Namespace      string `yaml:"namespace"`
	Image          string `yaml:"image"`
	Claim          string `yaml:"claim"`
	MountPath      string `yaml:"mountPath"`
	ConfigPath     string `yaml:"configPath"`
	ServiceAccount string `yaml:"serviceAccount,omitempty"`
}

func (km *KubernetesConfigMarshall) trySeal(path string) *KubernetesConfig {
	return &KubernetesConfig{
		namespace:      required(km.Namespace, path+".namespace"),
		image:          required(km.Image, path+".image"),
		claim:          required(km.Claim, path+".claim"),
		mountPath:      required(km.MountPath, path+".mountPath"),
		configPath:     required(km.ConfigPath, path+".configPath"),
		serviceAccount: km.ServiceAccount,
	}
}

func quantity(v string, path string) resource.Quantity {
	q, err := resource.ParseQuantity(v)
	if err != nil {
		panic(fmt.Sprintf("%s can not be parsed: %v", path, err))
	}
	return q
}

func nonnil[T any](v *T, path string) *T {
	if v == nil {
		panic(path + " is required")
	}
	return v
}

func required[T comparable](v T, path string) T {
	if v == *new(T) {
		panic(path + " is required")
	}
	return v
}
