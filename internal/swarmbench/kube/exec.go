package kube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	v1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"

	"github.com/swarmbench/swarmbench/internal/common/cluster"
)

// SpdyPodCommandRunner runs shell commands inside pods over the exec
// subresource.
type SpdyPodCommandRunner struct {
	client     kubernetes.Interface
	restConfig *rest.Config
}

func NewSpdyPodCommandRunner(provider cluster.KubernetesClientProvider) *SpdyPodCommandRunner {
	return &SpdyPodCommandRunner{
		client:     provider.Client(),
		restConfig: provider.ClientConfig(),
	}
}

func (r *SpdyPodCommandRunner) ExecInPod(ctx context.Context, namespace string, pod string, container string, command string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	err := r.stream(ctx, namespace, pod, container, command, stdout, stderr)
	return stdout.String(), stderr.String(), err
}

// CopyFromPod streams the contents of remotePath out of the pod into
// localPath, creating the parent directory when necessary.
func (r *SpdyPodCommandRunner) CopyFromPod(ctx context.Context, namespace string, pod string, container string, remotePath string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", localPath)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", localPath)
	}

	log.Infof("Copying %s/%s:%s to %s", namespace, pod, remotePath, localPath)
	stderr := &bytes.Buffer{}
	err = r.stream(ctx, namespace, pod, container, fmt.Sprintf("cat %s", remotePath), file, stderr)
	if err != nil {
		file.Close()
		if removeErr := os.Remove(localPath); removeErr != nil {
			log.WithError(removeErr).Warnf("Failed to remove partial file %s", localPath)
		}
		return errors.Wrapf(err, "failed to copy %s from pod %s: %s", remotePath, pod, stderr.String())
	}
	return file.Close()
}

func (r *SpdyPodCommandRunner) stream(ctx context.Context, namespace string, pod string, container string, command string, stdout io.Writer, stderr io.Writer) error {
	request := r.client.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&v1.PodExecOptions{
			Container: container,
			Command:   []string{"sh", "-c", command},
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(r.restConfig, "POST", request.URL())
	if err != nil {
		return errors.Wrap(err, "failed to create pod exec session")
	}

	done := make(chan error, 1)
	go func() {
		done <- executor.Stream(remotecommand.StreamOptions{Stdout: stdout, Stderr: stderr})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return errors.Wrapf(err, "exec in pod %s failed", pod)
	}
}
