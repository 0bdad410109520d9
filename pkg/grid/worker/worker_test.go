package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pombredanne/facereclib/pkg/configs/experiment"
	"github.com/pombredanne/facereclib/pkg/domain"
	"github.com/pombredanne/facereclib/pkg/grid"
	"github.com/pombredanne/facereclib/pkg/grid/k8s"
	"github.com/pombredanne/facereclib/pkg/grid/k8s/mock"
	"github.com/pombredanne/facereclib/pkg/grid/worker"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func kubernetesConfig() *experiment.KubernetesConfig {
	return experiment.TrySeal[*experiment.KubernetesConfig](&experiment.KubernetesConfigMarshall{
		Namespace:      "faceverify",
		Image:          "registry.example.com/faceverify@sha256:0123",
		Claim:          "faceverify-data",
		MountPath:      "/data",
		ConfigPath:     "/data/config.yaml",
		ServiceAccount: "faceverify-worker",
	})
}

func gridJob() grid.Job {
	return grid.Job{
		ID: "j1",
		Spec: grid.JobSpec{
			Name:    "score C dev[0:20]",
			Context: domain.StageContext{Stage: domain.Score, ScoreType: domain.ScoreC},
			Profile: grid.Profile{
				Queue: "default", CPU: resource.MustParse("1"), Memory: resource.MustParse("2Gi"),
			},
		},
		Status: grid.Starting,
	}
}

func TestBuild(t *testing.T) {
	actual := worker.Build(kubernetesConfig(), gridJob(), "signed-token")

	if actual.Name != "faceverify-worker-j1" || actual.Namespace != "faceverify" {
		t.Errorf("unexpected meta: %s/%s", actual.Namespace, actual.Name)
	}
	if actual.Labels[worker.LabelJob] != "j1" || actual.Labels[worker.LabelStage] != "score" {
		t.Errorf("unexpected labels: %v", actual.Labels)
	}
	if *actual.Spec.BackoffLimit != 0 {
		t.Errorf("a failed worker should not be retried: %d", *actual.Spec.BackoffLimit)
	}

	pod := actual.Spec.Template.Spec
	if pod.RestartPolicy != kubecore.RestartPolicyNever || pod.ServiceAccountName != "faceverify-worker" {
		t.Errorf("unexpected pod spec: %+v", pod)
	}
	if len(pod.Containers) != 1 {
		t.Fatalf("unexpected containers: %+v", pod.Containers)
	}
	c := pod.Containers[0]
	if c.Name != worker.Container || c.Image != "registry.example.com/faceverify@sha256:0123" {
		t.Errorf("unexpected container: %s %s", c.Name, c.Image)
	}
	if diff := cmp.Diff(
		[]string{"worker", "--config", "/data/config.yaml", "--token-env", worker.TokenEnv}, c.Args,
	); diff != "" {
		t.Errorf("args (-expected +actual):\n%s", diff)
	}
	if diff := cmp.Diff(
		[]kubecore.EnvVar{{Name: worker.TokenEnv, Value: "signed-token"}}, c.Env,
	); diff != "" {
		t.Errorf("env (-expected +actual):\n%s", diff)
	}
	if cpu := c.Resources.Requests[kubecore.ResourceCPU]; !cpu.Equal(resource.MustParse("1")) {
		t.Errorf("unexpected cpu: %s", cpu.String())
	}
	if mem := c.Resources.Limits[kubecore.ResourceMemory]; !mem.Equal(resource.MustParse("2Gi")) {
		t.Errorf("unexpected memory limit: %s", mem.String())
	}
	if len(c.VolumeMounts) != 1 || c.VolumeMounts[0].MountPath != "/data" {
		t.Errorf("unexpected mounts: %+v", c.VolumeMounts)
	}
	if len(pod.Volumes) != 1 || pod.Volumes[0].PersistentVolumeClaim.ClaimName != "faceverify-data" {
		t.Errorf("unexpected volumes: %+v", pod.Volumes)
	}
}

func TestSpawn(t *testing.T) {
	t.Run("it creates a Job and reports it pending", func(t *testing.T) {
		cluster, client := mock.NewCluster()
		var created *kubebatch.Job
		client.Impl.CreateJob = func(_ context.Context, _ string, j *kubebatch.Job) (*kubebatch.Job, error) {
			created = j
			return j, nil
		}
		client.Impl.FindPods = func(context.Context, string, k8s.LabelSelector) ([]kubecore.Pod, error) {
			return []kubecore.Pod{}, nil
		}

		w, err := worker.Spawn(context.Background(), cluster, kubernetesConfig(), gridJob(), "tok")
		if err != nil {
			t.Fatal(err)
		}
		if w.JobID() != "j1" || w.Status() != worker.Pending {
			t.Errorf("unexpected worker: %s %s", w.JobID(), w.Status())
		}
		if created == nil || created.Name != worker.Name("j1") {
			t.Errorf("unexpected job: %+v", created)
		}
	})
}

func TestKubernetes_Spawn(t *testing.T) {
	for name, testcase := range map[string]struct {
		image    string
		expected string
	}{
		"it runs the image of the config": {
			expected: "registry.example.com/faceverify@sha256:0123",
		},
		"it runs the pinned image": {
			image:    "registry.example.com/faceverify@sha256:4567",
			expected: "registry.example.com/faceverify@sha256:4567",
		},
	} {
		t.Run(name, func(t *testing.T) {
			cluster, client := mock.NewCluster()
			var created *kubebatch.Job
			client.Impl.CreateJob = func(_ context.Context, _ string, j *kubebatch.Job) (*kubebatch.Job, error) {
				created = j
				return j, nil
			}
			client.Impl.FindPods = func(context.Context, string, k8s.LabelSelector) ([]kubecore.Pod, error) {
				return []kubecore.Pod{}, nil
			}

			testee := worker.NewKubernetes(cluster, kubernetesConfig())
			if testcase.image != "" {
				testee = testee.WithImage(testcase.image)
			}
			if _, err := testee.Spawn(context.Background(), gridJob(), "tok"); err != nil {
				t.Fatal(err)
			}
			if created == nil {
				t.Fatal("no job is created")
			}
			if actual := created.Spec.Template.Spec.Containers[0].Image; actual != testcase.expected {
				t.Errorf("unexpected image: %s", actual)
			}
		})
	}
}

func TestFind(t *testing.T) {
	t.Run("it finds a failed worker with its exit code", func(t *testing.T) {
		cluster, client := mock.NewCluster()
		client.Impl.GetJob = func(_ context.Context, _, name string) (*kubebatch.Job, error) {
			j := worker.Build(kubernetesConfig(), gridJob(), "tok")
			j.Spec.Selector = &kubeapimeta.LabelSelector{MatchLabels: map[string]string{worker.LabelJob: "j1"}}
			j.Status.Conditions = []kubebatch.JobCondition{
				{Type: kubebatch.JobFailed, Status: kubecore.ConditionTrue},
			}
			return j, nil
		}
		client.Impl.FindPods = func(context.Context, string, k8s.LabelSelector) ([]kubecore.Pod, error) {
			return []kubecore.Pod{
				{Status: kubecore.PodStatus{
					Phase: kubecore.PodFailed,
					ContainerStatuses: []kubecore.ContainerStatus{
						{
							Name: worker.Container,
							State: kubecore.ContainerState{
								Terminated: &kubecore.ContainerStateTerminated{ExitCode: 1, Reason: "Error"},
							},
						},
					},
				}},
			}, nil
		}

		w, err := worker.Find(context.Background(), cluster, "j1")
		if err != nil {
			t.Fatal(err)
		}
		if w.Status() != worker.Failed {
			t.Errorf("unexpected status: %s", w.Status())
		}
		code, reason, ok := w.ExitCode()
		if !ok || code != 1 || reason != "Error" {
			t.Errorf("unexpected exit: %d %s %v", code, reason, ok)
		}
	})

	t.Run("it is k8s.ErrMissing when there is no Job", func(t *testing.T) {
		cluster, client := mock.NewCluster()
		client.Impl.GetJob = func(_ context.Context, _, name string) (*kubebatch.Job, error) {
			return nil, kubeerr.NewNotFound(schema.GroupResource{Group: "batch", Resource: "jobs"}, name)
		}
		if _, err := worker.Find(context.Background(), cluster, "j1"); !errors.Is(err, k8s.ErrMissing) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
