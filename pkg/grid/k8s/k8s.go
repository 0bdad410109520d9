// Package k8s runs grid workers as kubernetes Jobs.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pombredanne/facereclib/pkg/utils/retry"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var (
	// the Job is already created.
	ErrConflict = errors.New("conflict")

	// the Job is not found.
	ErrMissing = errors.New("missing")
)

// K8sClient is the subset of kubernetes.Clientset used by workers.
type K8sClient interface {
	GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
	CreateJob(ctx context.Context, namespace string, spec *kubebatch.Job) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error

	FindPods(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.Pod, error)
	Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error)
}

type k8sClient struct {
	client *kubernetes.Clientset
}

func WrapK8sClient(c *kubernetes.Clientset) K8sClient {
	return &k8sClient{client: c}
}

func (k *k8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	// pods of the job go with it.
	background := kubeapimeta.DeletePropagationBackground
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		PropagationPolicy: &background,
	})
}

func (k *k8sClient) FindPods(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.Pod, error) {
	pods, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return pods.Items, nil
}

func (k *k8sClient) Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error) {
	return k.client.CoreV1().
		Pods(namespace).
		GetLogs(podname, &kubecore.PodLogOptions{Container: container}).
		Stream(ctx)
}

type JobStatus string

const (
	// no pods have been started.
	Pending JobStatus = "Pending"

	// a pod has started, and the job has not completed.
	Running JobStatus = "Running"

	Succeeded JobStatus = "Succeeded"
	Failed    JobStatus = "Failed"
)

// Job is a snapshot of a kubernetes Job. Get it again to refresh.
type Job interface {
	Name() string
	Namespace() string

	Status() JobStatus

	// ExitCode of the container. ok is false while it is not terminated.
	ExitCode(container string) (code int, reason string, ok bool)

	// Log streams logs of the container of the first pod.
	Log(ctx context.Context, container string) (io.ReadCloser, error)

	// Close deletes the Job. A running Job is aborted.
	Close() error
}

type job struct {
	job    *kubebatch.Job
	pods   []kubecore.Pod
	client K8sClient
	close  func() error
}

var _ Job = &job{}

func (j *job) Name() string {
	return j.job.Name
}

func (j *job) Namespace() string {
	return j.job.Namespace
}

func (j *job) Status() JobStatus {
	for _, sc := range j.job.Status.Conditions {
		if sc.Status != kubecore.ConditionTrue {
			continue
		}
		switch sc.Type {
		case kubebatch.JobComplete:
			return Succeeded
		case kubebatch.JobFailed:
			return Failed
		}
	}

	for _, p := range j.pods {
		switch p.Status.Phase {
		case kubecore.PodRunning, kubecore.PodSucceeded, kubecore.PodFailed:
			return Running
		}
	}
	return Pending
}

func (j *job) ExitCode(container string) (int, string, bool) {
	for _, p := range j.pods {
		for _, c := range p.Status.ContainerStatuses {
			if c.Name != container {
				continue
			}
			if term := c.State.Terminated; term != nil {
				return int(term.ExitCode), term.Reason, true
			}
			break
		}
	}
	return 0, "", false
}

func (j *job) Log(ctx context.Context, container string) (io.ReadCloser, error) {
	if len(j.pods) == 0 {
		return nil, errors.New("no pods")
	}
	pod := j.pods[0]
	return j.client.Log(ctx, pod.Namespace, pod.Name, container)
}

func (j *job) Close() error {
	if j.close == nil {
		return nil
	}
	return j.close()
}

// Requirement checks a Job. It returns retry.ErrRetry to wait more.
type Requirement func(*kubebatch.Job) error

// JobHaveBeenCreated is satisfied by any Job.
var JobHaveBeenCreated Requirement = func(*kubebatch.Job) error {
	return nil
}

func satisfyAll(value *kubebatch.Job, req []Requirement) error {
	for _, r := range req {
		if err := r(value); err != nil {
			return err
		}
	}
	return nil
}

// Cluster is a namespace of kubernetes where Jobs are created.
type Cluster interface {
	Namespace() string

	// NewJob creates a Job, then waits for requirements with backoff.
	//
	// Errors are ErrConflict when the Job exists, or errors of the client,
	// requirements and ctx.
	NewJob(ctx context.Context, backoff retry.Backoff, spec *kubebatch.Job, requirements ...Requirement) retry.Promise[Job]

	// GetJob finds the named Job, then waits for requirements with backoff.
	//
	// Errors are ErrMissing when not found, or errors of the client,
	// requirements and ctx.
	GetJob(ctx context.Context, backoff retry.Backoff, name string, requirements ...Requirement) retry.Promise[Job]
}

type k8sCluster struct {
	client    K8sClient
	namespace string
}

var _ Cluster = &k8sCluster{}

func AttachCluster(client K8sClient, namespace string) Cluster {
	return &k8sCluster{client: client, namespace: namespace}
}

func (c *k8sCluster) Namespace() string {
	return c.namespace
}

func (c *k8sCluster) pods(ctx context.Context, j *kubebatch.Job) []kubecore.Pod {
	if j.Spec.Selector == nil {
		return []kubecore.Pod{}
	}
	pods, err := c.client.FindPods(ctx, c.namespace, LabelSelector(j.Spec.Selector.MatchLabels))
	if err != nil {
		return []kubecore.Pod{}
	}
	return pods
}

func (c *k8sCluster) closer(name string) func() error {
	return func() error {
		err := c.client.DeleteJob(context.Background(), c.namespace, name)
		if kubeerr.IsNotFound(err) {
			return nil
		}
		return err
	}
}

func (c *k8sCluster) NewJob(
	ctx context.Context, backoff retry.Backoff, spec *kubebatch.Job,
	requirements ...Requirement,
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement{JobHaveBeenCreated}
	}
	if err := ctx.Err(); err != nil {
		return retry.Failed[Job](err)
	}

	created, err := c.client.CreateJob(ctx, c.namespace, spec)
	if err != nil {
		if kubeerr.IsAlreadyExists(err) {
			return retry.Failed[Job](fmt.Errorf("%w: job %s: %w", ErrConflict, spec.Name, err))
		}
		return retry.Failed[Job](err)
	}

	if err := satisfyAll(created, requirements); err == nil {
		return retry.Ok[Job](&job{
			job: created, pods: c.pods(ctx, created),
			client: c.client, close: c.closer(created.Name),
		})
	} else if !errors.Is(err, retry.ErrRetry) {
		return retry.Failed[Job](err)
	}
	return c.GetJob(ctx, backoff, created.Name, requirements...)
}

func (c *k8sCluster) GetJob(
	ctx context.Context, backoff retry.Backoff, name string,
	requirements ...Requirement,
) retry.Promise[Job] {
	if len(requirements) == 0 {
		requirements = []Requirement{JobHaveBeenCreated}
	}

	return retry.Go(ctx, backoff, func() (Job, error) {
		found, err := c.client.GetJob(ctx, c.namespace, name)
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return nil, fmt.Errorf("%w: job %s: %w", ErrMissing, name, err)
			}
			return nil, err
		}
		if err := satisfyAll(found, requirements); err != nil {
			return nil, err
		}
		return &job{
			job: found, pods: c.pods(ctx, found),
			client: c.client, close: c.closer(name),
		}, nil
	})
}
