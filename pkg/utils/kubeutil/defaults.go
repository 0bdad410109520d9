// Package kubeutil connects to a kubernetes cluster.
package kubeutil

import (
	"os"
	"path/filepath"

	xe "github.com/pombredanne/facereclib/pkg/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

// ConnectToK8s finds a kubeconfig and makes a clientset from it.
//
// Later candidates win:
//
//   - ~/.kube/config
//   - envvar KUBECONFIG
//   - the first existing file in kubeconfig
//
// When none of them exists, it uses the in-cluster config.
func ConnectToK8s(kubeconfig ...string) (*kubernetes.Clientset, error) {
	found := ""
	isFile := func(p string) bool {
		s, err := os.Stat(p)
		return err == nil && !s.IsDir()
	}

	if home := homedir.HomeDir(); home != "" {
		if p := filepath.Join(home, ".kube", "config"); isFile(p) {
			found = p
		}
	}
	if p := os.Getenv("KUBECONFIG"); p != "" && isFile(p) {
		found = p
	}
	for _, p := range kubeconfig {
		if p != "" && isFile(p) {
			found = p
			break
		}
	}

	var config *rest.Config
	var err error
	if found == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", found)
	}
	if err != nil {
		return nil, xe.Configuration("no kubernetes cluster available: %v", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return clientset, nil
}
