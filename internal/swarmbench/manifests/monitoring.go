package manifests

import (
	appsv1 "k8s.io/api/apps/v1"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/pointer"
)

const (
	influxdbApp = "influxdb"
	grafanaApp  = "grafana"

	influxdbPort = 8086
	grafanaPort  = 3000
)

func InfluxDBDeployment(namespace string) *appsv1.Deployment {
	labels := map[string]string{"app": influxdbApp}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: influxdbApp, Namespace: namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: v1.PodSpec{
					Containers: []v1.Container{
						{
							Name:  influxdbApp,
							Image: influxdbImage,
							Env: []v1.EnvVar{
								{Name: "INFLUXDB_DB", Value: "jmeter"},
							},
							Ports: []v1.ContainerPort{{Name: "http", ContainerPort: influxdbPort}},
						},
					},
				},
			},
		},
	}
}

func InfluxDBService(namespace string) *v1.Service {
	labels := map[string]string{"app": influxdbApp}
	return &v1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: influxdbApp, Namespace: namespace, Labels: labels},
		Spec: v1.ServiceSpec{
			Selector: labels,
			Ports: []v1.ServicePort{
				{Name: "http", Port: influxdbPort, TargetPort: intstr.FromInt(influxdbPort)},
			},
		},
	}
}

func GrafanaDeployment(namespace string) *appsv1.Deployment {
	labels := map[string]string{"app": grafanaApp}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: grafanaApp, Namespace: namespace, Labels: labels},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: v1.PodSpec{
					Containers: []v1.Container{
						{
							Name:  grafanaApp,
							Image: grafanaImage,
							Env: []v1.EnvVar{
								{Name: "GF_AUTH_ANONYMOUS_ENABLED", Value: "true"},
								{Name: "GF_AUTH_ANONYMOUS_ORG_ROLE", Value: "Viewer"},
							},
							Ports: []v1.ContainerPort{{Name: "http", ContainerPort: grafanaPort}},
						},
					},
				},
			},
		},
	}
}

// GrafanaService is exposed through a LoadBalancer so the dashboard is
// reachable from outside the cluster.
func GrafanaService(namespace string) *v1.Service {
	labels := map[string]string{"app": grafanaApp}
	return &v1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: grafanaApp, Namespace: namespace, Labels: labels},
		Spec: v1.ServiceSpec{
			Type:     v1.ServiceTypeLoadBalancer,
			Selector: labels,
			Ports: []v1.ServicePort{
				{Name: "http", Port: grafanaPort, TargetPort: intstr.FromInt(grafanaPort)},
			},
		},
	}
}
