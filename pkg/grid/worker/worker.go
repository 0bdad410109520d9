// Package worker runs a grid job in a kubernetes Job.
//
// The pod runs "faceverify worker" with the experiment configuration from the
// shared volume, and reads its signed job context from TokenEnv.
package worker

import (
	"context"
	"io"
	"time"

	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/grid/k8s"
	ptr "github.com/pombredanne/facereclib/pkg/utils/pointer"
	"github.com/pombredanne/facereclib/pkg/utils/retry"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// environment variable holding the job token in worker pods.
	TokenEnv = "FACEVERIFY_JOB_TOKEN"

	Container = "worker"

	LabelJob   = "faceverify.pombredanne.github.com/job"
	LabelStage = "faceverify.pombredanne.github.com/stage"

	volumeName = "experiment"

	pollInterval = 200 * time.Millisecond
)

type Status string

const (
	Pending Status = "pending"
	Running Status = "running"
	Done    Status = "done"
	Failed  Status = "failed"
)

type Worker interface {
	JobID() grid.JobID

	Status() Status

	// ExitCode of the worker container. ok is false while it runs.
	ExitCode() (code int, reason string, ok bool)

	Log(ctx context.Context) (io.ReadCloser, error)

	// Close deletes the kubernetes Job.
	Close() error
}

type worker struct {
	id  grid.JobID
	job k8s.Job
}

func (w *worker) JobID() grid.JobID {
	return w.id
}

func (w *worker) Status() Status {
	switch w.job.Status() {
	case k8s.Succeeded:
		return Done
	case k8s.Failed:
		return Failed
	case k8s.Pending:
		return Pending
	default:
		return Running
	}
}

func (w *worker) ExitCode() (int, string, bool) {
	return w.job.ExitCode(Container)
}

func (w *worker) Log(ctx context.Context) (io.ReadCloser, error) {
	return w.job.Log(ctx, Container)
}

func (w *worker) Close() error {
	return w.job.Close()
}

// Name of the kubernetes Job for a grid job.
func Name(id grid.JobID) string {
	return "faceverify-worker-" + string(id)
}

func labels(j grid.Job) map[string]string {
	return map[string]string{
		"app.kubernetes.io/name":      "faceverify",
		"app.kubernetes.io/component": "worker",
		LabelJob:                      string(j.ID),
		LabelStage:                    string(j.Spec.Context.Stage),
	}
}

func resources(p grid.Profile) kubecore.ResourceRequirements {
	req := kubecore.ResourceRequirements{
		Requests: kubecore.ResourceList{},
		Limits:   kubecore.ResourceList{},
	}
	if !p.CPU.IsZero() {
		req.Requests[kubecore.ResourceCPU] = p.CPU
	}
	if !p.Memory.IsZero() {
		req.Requests[kubecore.ResourceMemory] = p.Memory
		req.Limits[kubecore.ResourceMemory] = p.Memory
	}
	return req
}

// Build makes the kubernetes Job running j.
func Build(kc *experiment.KubernetesConfig, j grid.Job, token string) *kubebatch.Job {
	ls := labels(j)
	return &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      Name(j.ID),
			Namespace: kc.Namespace(),
			Labels:    ls,
			Annotations: map[string]string{
				"faceverify.pombredanne.github.com/name": j.Spec.Name,
			},
		},
		Spec: kubebatch.JobSpec{
			Parallelism:  ptr.Ref[int32](1),
			Completions:  ptr.Ref[int32](1),
			BackoffLimit: ptr.Ref[int32](0),
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{Labels: ls},
				Spec: kubecore.PodSpec{
					RestartPolicy:      kubecore.RestartPolicyNever,
					ServiceAccountName: kc.ServiceAccount(),
					Containers: []kubecore.Container{
						{
							Name:  Container,
							Image: kc.Image(),
							Args:  []string{"worker", "--config", kc.ConfigPath(), "--token-env", TokenEnv},
							Env: []kubecore.EnvVar{
								{Name: TokenEnv, Value: token},
							},
							Resources: resources(j.Spec.Profile),
							VolumeMounts: []kubecore.VolumeMount{
								{Name: volumeName, MountPath: kc.MountPath()},
							},
						},
					},
					Volumes: []kubecore.Volume{
						{
							Name: volumeName,
							VolumeSource: kubecore.VolumeSource{
								PersistentVolumeClaim: &kubecore.PersistentVolumeClaimVolumeSource{
									ClaimName: kc.Claim(),
								},
							},
						},
					},
				},
			},
		},
	}
}

// Spawn creates a kubernetes Job running j.
func Spawn(
	ctx context.Context,
	cluster k8s.Cluster,
	kc *experiment.KubernetesConfig,
	j grid.Job,
	token string,
) (Worker, error) {
	return spawn(ctx, cluster, j.ID, Build(kc, j, token))
}

func spawn(ctx context.Context, cluster k8s.Cluster, id grid.JobID, job *kubebatch.Job) (Worker, error) {
	prom := <-cluster.NewJob(ctx, retry.StaticBackoff(pollInterval), job)
	if prom.Err != nil {
		return nil, prom.Err
	}
	return &worker{id: id, job: prom.Value}, nil
}

// Find the Worker of a grid job.
//
// When it is not found, the error is k8s.ErrMissing.
func Find(ctx context.Context, cluster k8s.Cluster, id grid.JobID) (Worker, error) {
	prom := <-cluster.GetJob(ctx, retry.StaticBackoff(pollInterval), Name(id))
	if prom.Err != nil {
		return nil, prom.Err
	}
	return &worker{id: id, job: prom.Value}, nil
}

// Kubernetes spawns and finds workers in a cluster.
type Kubernetes struct {
	cluster k8s.Cluster
	conf    *experiment.KubernetesConfig

	// overrides the image of conf when not empty.
	image string
}

func NewKubernetes(cluster k8s.Cluster, conf *experiment.KubernetesConfig) *Kubernetes {
	return &Kubernetes{cluster: cluster, conf: conf}
}

// WithImage returns a copy of k whose workers run image.
func (k *Kubernetes) WithImage(image string) *Kubernetes {
	c := *k
	c.image = image
	return &c
}

func (k *Kubernetes) Spawn(ctx context.Context, j grid.Job, token string) (Worker, error) {
	job := Build(k.conf, j, token)
	if k.image != "" {
		for i := range job.Spec.Template.Spec.Containers {
			job.Spec.Template.Spec.Containers[i].Image = k.image
		}
	}
	return spawn(ctx, k.cluster, j.ID, job)
}

func (k *Kubernetes) Find(ctx context.Context, id grid.JobID) (Worker, error) {
	return Find(ctx, k.cluster, id)
}
