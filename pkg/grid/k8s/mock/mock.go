// Package mock fakes k8s.K8sClient with function fields.
package mock

import (
	"context"
	"errors"
	"io"

	"github.com/pombredanne/facereclib/pkg/grid/k8s"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
)

// NewCluster returns a k8s.Cluster over a new MockClient.
//
// Set MockClient.Impl to fake kubernetes, and read MockClient.Called to spy.
func NewCluster() (k8s.Cluster, *MockClient) {
	client := &MockClient{}
	return k8s.AttachCluster(client, "fake-namespace"), client
}

var errNotImplemented = errors.New("[MOCK] not implemented")

type MockClient struct {
	Impl struct {
		GetJob    func(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
		CreateJob func(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
		DeleteJob func(ctx context.Context, namespace string, name string) error

		FindPods func(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error)
		Log      func(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error)
	}
	Called struct {
		GetJob    uint64
		CreateJob uint64
		DeleteJob uint64
		FindPods  uint64
		Log       uint64
	}
}

var _ k8s.K8sClient = &MockClient{}

func (m *MockClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	m.Called.GetJob += 1
	if m.Impl.GetJob == nil {
		return nil, errNotImplemented
	}
	return m.Impl.GetJob(ctx, namespace, name)
}

func (m *MockClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	m.Called.CreateJob += 1
	if m.Impl.CreateJob == nil {
		return nil, errNotImplemented
	}
	return m.Impl.CreateJob(ctx, namespace, job)
}

func (m *MockClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	m.Called.DeleteJob += 1
	if m.Impl.DeleteJob == nil {
		return errNotImplemented
	}
	return m.Impl.DeleteJob(ctx, namespace, name)
}

func (m *MockClient) FindPods(ctx context.Context, namespace string, ls k8s.LabelSelector) ([]kubecore.Pod, error) {
	m.Called.FindPods += 1
	if m.Impl.FindPods == nil {
		return nil, errNotImplemented
	}
	return m.Impl.FindPods(ctx, namespace, ls)
}

func (m *MockClient) Log(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error) {
	m.Called.Log += 1
	if m.Impl.Log == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Log(ctx, namespace, pod, container)
}
