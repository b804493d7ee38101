package manifests

import (
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	v1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/utils/pointer"

	"github.com/swarmbench/swarmbench/internal/swarmbench/domain"
)

const (
	jmeterImage   = "justb4/jmeter:5.5"
	influxdbImage = "influxdb:1.8"
	grafanaImage  = "grafana/grafana:9.5.2"

	configMapName      = "jmeter-config"
	storageClassName   = "jmeter-gp3"
	testplansVolume    = "testplans"
	resultsVolume      = "results"
	testplansClaimName = "jmeter-testplans"
	resultsClaimName   = "jmeter-results"

	workerTargetCPUPercent = 75
)

func controllerLabels() map[string]string {
	return map[string]string{domain.AppLabel: domain.ControllerApp}
}

func workerLabels() map[string]string {
	return map[string]string{domain.AppLabel: domain.WorkerApp}
}

// StorageClass and the claims below are cluster scoped / shared and not tied
// to a single run.
func StorageClass() *storagev1.StorageClass {
	bindingMode := storagev1.VolumeBindingWaitForFirstConsumer
	reclaimPolicy := v1.PersistentVolumeReclaimDelete
	return &storagev1.StorageClass{
		ObjectMeta:        metav1.ObjectMeta{Name: storageClassName},
		Provisioner:       "ebs.csi.aws.com",
		Parameters:        map[string]string{"type": "gp3"},
		VolumeBindingMode: &bindingMode,
		ReclaimPolicy:     &reclaimPolicy,
	}
}

func PersistentVolumeClaims(namespace string) []*v1.PersistentVolumeClaim {
	return []*v1.PersistentVolumeClaim{
		persistentVolumeClaim(namespace, testplansClaimName, "1Gi"),
		persistentVolumeClaim(namespace, resultsClaimName, "5Gi"),
	}
}

func persistentVolumeClaim(namespace string, name string, size string) *v1.PersistentVolumeClaim {
	className := storageClassName
	return &v1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: v1.PersistentVolumeClaimSpec{
			AccessModes:      []v1.PersistentVolumeAccessMode{v1.ReadWriteOnce},
			StorageClassName: &className,
			Resources: v1.ResourceRequirements{
				Requests: v1.ResourceList{
					v1.ResourceStorage: resource.MustParse(size),
				},
			},
		},
	}
}

// ConfigMap holds the controller entrypoint and the distributed-mode jmeter
// properties.
func ConfigMap(params Params) (*v1.ConfigMap, error) {
	entrypoint, err := renderTemplate("entrypoint", entrypointTemplate, params)
	if err != nil {
		return nil, err
	}
	properties, err := renderTemplate("jmeter-properties", jmeterPropertiesTemplate, params)
	if err != nil {
		return nil, err
	}

	return &v1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      configMapName,
			Namespace: params.Run.Namespace,
		},
		Data: map[string]string{
			"entrypoint.sh":     entrypoint,
			"jmeter.properties": properties,
		},
	}, nil
}

func ControllerDeployment(params Params) *appsv1.Deployment {
	configMapMode := int32(0o755)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:      domain.ControllerApp,
			Namespace: params.Run.Namespace,
			Labels:    controllerLabels(),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: pointer.Int32(1),
			Selector: &metav1.LabelSelector{MatchLabels: controllerLabels()},
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: controllerLabels()},
				Spec: v1.PodSpec{
					Containers: []v1.Container{
						{
							Name:    domain.ControllerContainer,
							Image:   jmeterImage,
							Command: []string{"/config/entrypoint.sh"},
							Ports: []v1.ContainerPort{
								{Name: "http", ContainerPort: int32(params.Run.HTTPPort)},
							},
							VolumeMounts: []v1.VolumeMount{
								{Name: "config", MountPath: "/config"},
								{Name: testplansVolume, MountPath: params.Paths.TestplansDir},
								{Name: resultsVolume, MountPath: params.Paths.ResultsDir},
							},
						},
					},
					Volumes: []v1.Volume{
						{
							Name: "config",
							VolumeSource: v1.VolumeSource{
								ConfigMap: &v1.ConfigMapVolumeSource{
									LocalObjectReference: v1.LocalObjectReference{Name: configMapName},
									DefaultMode:          &configMapMode,
								},
							},
						},
						{
							Name: testplansVolume,
							VolumeSource: v1.VolumeSource{
								PersistentVolumeClaim: &v1.PersistentVolumeClaimVolumeSource{ClaimName: testplansClaimName},
							},
						},
						{
							Name: resultsVolume,
							VolumeSource: v1.VolumeSource{
								PersistentVolumeClaim: &v1.PersistentVolumeClaimVolumeSource{ClaimName: resultsClaimName},
							},
						},
					},
				},
			},
		},
	}
}

func ControllerService(params Params) *v1.Service {
	return &v1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      domain.ControllerApp,
			Namespace: params.Run.Namespace,
			Labels:    controllerLabels(),
		},
		Spec: v1.ServiceSpec{
			Selector: controllerLabels(),
			Ports: []v1.ServicePort{
				{
					Name:       "http",
					Port:       int32(params.Run.HTTPPort),
					TargetPort: intstr.FromInt(params.Run.HTTPPort),
				},
			},
		},
	}
}

// WorkerStatefulSet starts with zero replicas. The run coordinator scales it
// to the requested shard count.
func WorkerStatefulSet(params Params) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      domain.WorkerStatefulSet,
			Namespace: params.Run.Namespace,
			Labels:    workerLabels(),
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    pointer.Int32(0),
			ServiceName: domain.WorkerApp,
			Selector:    &metav1.LabelSelector{MatchLabels: workerLabels()},
			Template: v1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: workerLabels()},
				Spec: v1.PodSpec{
					Containers: []v1.Container{
						{
							Name:  "jmeter-slave",
							Image: jmeterImage,
							Args: []string{
								"-s",
								"-Jserver.rmi.ssl.disable=true",
								fmt.Sprintf("-Jserver_port=%d", params.Run.RMIPort),
							},
							Ports: []v1.ContainerPort{
								{Name: "rmi", ContainerPort: int32(params.Run.RMIPort)},
							},
							Resources: v1.ResourceRequirements{
								Requests: v1.ResourceList{
									v1.ResourceCPU:    resource.MustParse("500m"),
									v1.ResourceMemory: resource.MustParse("1Gi"),
								},
							},
						},
					},
				},
			},
		},
	}
}

// WorkerService is headless so workers get stable per-pod DNS names for RMI.
func WorkerService(params Params) *v1.Service {
	return &v1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      domain.WorkerApp,
			Namespace: params.Run.Namespace,
			Labels:    workerLabels(),
		},
		Spec: v1.ServiceSpec{
			ClusterIP: v1.ClusterIPNone,
			Selector:  workerLabels(),
			Ports: []v1.ServicePort{
				{
					Name:       "rmi",
					Port:       int32(params.Run.RMIPort),
					TargetPort: intstr.FromInt(params.Run.RMIPort),
				},
			},
		},
	}
}

func WorkerHPA(params Params) *autoscalingv2.HorizontalPodAutoscaler {
	return &autoscalingv2.HorizontalPodAutoscaler{
		ObjectMeta: metav1.ObjectMeta{
			Name:      domain.WorkerStatefulSet,
			Namespace: params.Run.Namespace,
			Labels:    workerLabels(),
		},
		Spec: autoscalingv2.HorizontalPodAutoscalerSpec{
			ScaleTargetRef: autoscalingv2.CrossVersionObjectReference{
				APIVersion: "apps/v1",
				Kind:       "StatefulSet",
				Name:       domain.WorkerStatefulSet,
			},
			MinReplicas: pointer.Int32(1),
			MaxReplicas: int32(params.Run.MaxShards),
			Metrics: []autoscalingv2.MetricSpec{
				{
					Type: autoscalingv2.ResourceMetricSourceType,
					Resource: &autoscalingv2.ResourceMetricSource{
						Name: v1.ResourceCPU,
						Target: autoscalingv2.MetricTarget{
							Type:               autoscalingv2.UtilizationMetricType,
							AverageUtilization: pointer.Int32(workerTargetCPUPercent),
						},
					},
				},
			},
		},
	}
}
