// Package experiment reads experiment configuration files.
//
// A configuration is a yaml document. Load it with LoadExperimentConfig or
// Unmarshal. Loaded configs are read only.
package experiment

import (
	"maps"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Database kinds.
const (
	FileList = "filelist"
	Postgres = "postgres"
)

const DefaultBaseline = "neutral"

type ExperimentConfig struct {
	name         string
	baseline     string
	database     *DatabaseConfig
	preprocessor *ToolConfig
	features     *ToolConfig
	tool         *ToolConfig
	directories  Directories
	keywords     map[string]StageOptions
	grid         *GridConfig
}

// Name of the experiment.
func (e *ExperimentConfig) Name() string {
	return e.name
}

// Name of the type which enrols and scores every protocol. default = "neutral".
func (e *ExperimentConfig) Baseline() string {
	return e.baseline
}

func (e *ExperimentConfig) Database() *DatabaseConfig {
	return e.database
}

func (e *ExperimentConfig) Preprocessor() *ToolConfig {
	return e.preprocessor
}

func (e *ExperimentConfig) Features() *ToolConfig {
	return e.features
}

func (e *ExperimentConfig) Tool() *ToolConfig {
	return e.tool
}

func (e *ExperimentConfig) Directories() Directories {
	return e.directories
}

// Keywords returns stage options specific to a type or a protocol.
//
// The returned map is a copy.
func (e *ExperimentConfig) Keywords() map[string]StageOptions {
	kw := make(map[string]StageOptions, len(e.keywords))
	for k, v := range e.keywords {
		kw[k] = v.Clone()
	}
	return kw
}

// Grid returns configuration for grid execution. It is never nil.
func (e *ExperimentConfig) Grid() *GridConfig {
	return e.grid
}

type DatabaseConfig struct {
	name     string
	kind     string
	fileList string
	url      string
	protocol string

	originalDirectory string
	originalExtension string

	annotationDirectory string
	annotationExtension string
	firstAnnotation     int

	options StageOptions
}

func (d *DatabaseConfig) Name() string {
	return d.name
}

// Kind is FileList or Postgres.
func (d *DatabaseConfig) Kind() string {
	return d.kind
}

// Path to a file list. Only for FileList.
func (d *DatabaseConfig) FileList() string {
	return d.fileList
}

// Connection string. Only for Postgres.
func (d *DatabaseConfig) URL() string {
	return d.url
}

// Protocol used when no protocol is requested.
func (d *DatabaseConfig) Protocol() string {
	return d.protocol
}

func (d *DatabaseConfig) OriginalDirectory() string {
	return d.originalDirectory
}

func (d *DatabaseConfig) OriginalExtension() string {
	return d.originalExtension
}

// Directory of eye annotation files. Empty when there are no annotations.
func (d *DatabaseConfig) AnnotationDirectory() string {
	return d.annotationDirectory
}

func (d *DatabaseConfig) AnnotationExtension() string {
	return d.annotationExtension
}

// Number of leading tokens to skip in an annotation file.
func (d *DatabaseConfig) FirstAnnotation() int {
	return d.firstAnnotation
}

// Options applied to every type.
func (d *DatabaseConfig) Options() StageOptions {
	return d.options.Clone()
}

// ToolConfig names a tool and carries its parameters.
type ToolConfig struct {
	name   string
	params yaml.Node
}

func (t *ToolConfig) Name() string {
	return t.name
}

// Decode parameters into v. When no parameters are given, v is untouched.
func (t *ToolConfig) Decode(v any) error {
	if t.params.Kind == 0 {
		return nil
	}
	return t.params.Decode(v)
}

type GridConfig struct {
	chunks     Chunks
	queues     map[string]QueueConfig
	kubernetes *KubernetesConfig
	queueDB    string
	signingKey string
	port       int32
}

// Chunk sizes of partitioned stages.
func (g *GridConfig) Chunks() Chunks {
	return g.chunks
}

// Queue returns the named queue, or "default" when it is not configured.
func (g *GridConfig) Queue(name string) (string, QueueConfig) {
	if q, ok := g.queues[name]; ok {
		return name, q
	}
	return DefaultQueue, g.queues[DefaultQueue]
}

// Queues returns a copy of every configured queue.
func (g *GridConfig) Queues() map[string]QueueConfig {
	return maps.Clone(g.queues)
}

// Kubernetes returns where workers run. It may be nil.
func (g *GridConfig) Kubernetes() *KubernetesConfig {
	return g.kubernetes
}

// Connection string of the job queue database. It may be empty.
func (g *GridConfig) QueueDatabase() string {
	return g.queueDB
}

// Name of the environment variable holding the key to sign job tokens.
func (g *GridConfig) SigningKeyEnv() string {
	return g.signingKey
}

// Port of the dispatcher's job status api.
func (g *GridConfig) Port() int32 {
	return g.port
}

const (
	DefaultQueue  = "default"
	TrainingQueue = "training"
)

type Chunks struct {
	Images      int
	Features    int
	Projections int

	ModelsPerEnrolJob int
	ModelsPerScoreJob int
}

type QueueConfig struct {
	CPU    resource.Quantity
	Memory resource.Quantity
}

type KubernetesConfig struct {
	namespace      string
	image          string
	claim          string
	mountPath      string
	configPath     string
	serviceAccount string
}

func (k *KubernetesConfig) Namespace() string {
	return k.namespace
}

// Image of worker containers.
func (k *KubernetesConfig) Image() string {
	return k.image
}

// PersistentVolumeClaim shared by workers.
func (k *KubernetesConfig) Claim() string {
	return k.claim
}

// Where the claim is mounted in workers.
func (k *KubernetesConfig) MountPath() string {
	return k.mountPath
}

// Path of this config file as workers see it.
func (k *KubernetesConfig) ConfigPath() string {
	return k.configPath
}

// Service account of workers. It may be empty.
func (k *KubernetesConfig) ServiceAccount() string {
	return k.serviceAccount
}
