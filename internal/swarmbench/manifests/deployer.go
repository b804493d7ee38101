package manifests

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	v1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/swarmbench/swarmbench/internal/swarmbench/configuration"
)

// Deployer submits the load test topology to the cluster.
type Deployer struct {
	client     kubernetes.Interface
	monitoring configuration.MonitoringConfiguration
	namespaces configuration.NamespacesConfiguration
}

func NewDeployer(
	client kubernetes.Interface,
	namespaces configuration.NamespacesConfiguration,
	monitoring configuration.MonitoringConfiguration,
) *Deployer {
	return &Deployer{
		client:     client,
		namespaces: namespaces,
		monitoring: monitoring,
	}
}

// Apply creates or updates every object of the topology. Objects already
// present are updated in place so repeated cluster creations converge.
func (d *Deployer) Apply(ctx context.Context, params Params) error {
	if err := d.applyStorageClass(ctx, StorageClass()); err != nil {
		return err
	}
	for _, claim := range PersistentVolumeClaims(params.Run.Namespace) {
		if err := d.applyPersistentVolumeClaim(ctx, claim); err != nil {
			return err
		}
	}

	configMap, err := ConfigMap(params)
	if err != nil {
		return err
	}
	if err := d.applyConfigMap(ctx, configMap); err != nil {
		return err
	}

	if err := d.applyDeployment(ctx, ControllerDeployment(params)); err != nil {
		return err
	}
	if err := d.applyService(ctx, ControllerService(params)); err != nil {
		return err
	}
	if err := d.applyStatefulSet(ctx, WorkerStatefulSet(params)); err != nil {
		return err
	}
	if err := d.applyService(ctx, WorkerService(params)); err != nil {
		return err
	}
	if err := d.applyHPA(ctx, WorkerHPA(params)); err != nil {
		return err
	}

	if !d.monitoring.Enabled {
		log.Warn("Monitoring disabled, skipping influxdb and grafana")
		return nil
	}
	monitoringNamespace := d.namespaces.Monitoring
	if err := d.applyDeployment(ctx, InfluxDBDeployment(monitoringNamespace)); err != nil {
		return err
	}
	if err := d.applyService(ctx, InfluxDBService(monitoringNamespace)); err != nil {
		return err
	}
	if err := d.applyDeployment(ctx, GrafanaDeployment(monitoringNamespace)); err != nil {
		return err
	}
	return d.applyService(ctx, GrafanaService(monitoringNamespace))
}

func (d *Deployer) applyConfigMap(ctx context.Context, configMap *v1.ConfigMap) error {
	log.Infof("Applying configmap %s/%s", configMap.Namespace, configMap.Name)
	client := d.client.CoreV1().ConfigMaps(configMap.Namespace)
	_, err := client.Create(ctx, configMap, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		_, err = client.Update(ctx, configMap, metav1.UpdateOptions{})
	}
	return errors.Wrapf(err, "failed to apply configmap %s", configMap.Name)
}

func (d *Deployer) applyDeployment(ctx context.Context, deployment *appsv1.Deployment) error {
	log.Infof("Applying deployment %s/%s", deployment.Namespace, deployment.Name)
	client := d.client.AppsV1().Deployments(deployment.Namespace)
	_, err := client.Create(ctx, deployment, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		_, err = client.Update(ctx, deployment, metav1.UpdateOptions{})
	}
	return errors.Wrapf(err, "failed to apply deployment %s", deployment.Name)
}

func (d *Deployer) applyStatefulSet(ctx context.Context, statefulSet *appsv1.StatefulSet) error {
	log.Infof("Applying statefulset %s/%s", statefulSet.Namespace, statefulSet.Name)
	client := d.client.AppsV1().StatefulSets(statefulSet.Namespace)
	_, err := client.Create(ctx, statefulSet, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		// Replica count is owned by the run coordinator, leave the live
		// object in place.
		return nil
	}
	return errors.Wrapf(err, "failed to apply statefulset %s", statefulSet.Name)
}

func (d *Deployer) applyService(ctx context.Context, service *v1.Service) error {
	log.Infof("Applying service %s/%s", service.Namespace, service.Name)
	client := d.client.CoreV1().Services(service.Namespace)
	_, err := client.Create(ctx, service, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		// Service ClusterIPs are immutable, keep the existing object.
		return nil
	}
	return errors.Wrapf(err, "failed to apply service %s", service.Name)
}

func (d *Deployer) applyHPA(ctx context.Context, hpa *autoscalingv2.HorizontalPodAutoscaler) error {
	log.Infof("Applying hpa %s/%s", hpa.Namespace, hpa.Name)
	client := d.client.AutoscalingV2().HorizontalPodAutoscalers(hpa.Namespace)
	_, err := client.Create(ctx, hpa, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		_, err = client.Update(ctx, hpa, metav1.UpdateOptions{})
	}
	return errors.Wrapf(err, "failed to apply hpa %s", hpa.Name)
}

func (d *Deployer) applyStorageClass(ctx context.Context, storageClass *storagev1.StorageClass) error {
	log.Infof("Applying storageclass %s", storageClass.Name)
	_, err := d.client.StorageV1().StorageClasses().Create(ctx, storageClass, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to apply storageclass %s", storageClass.Name)
}

func (d *Deployer) applyPersistentVolumeClaim(ctx context.Context, claim *v1.PersistentVolumeClaim) error {
	log.Infof("Applying pvc %s/%s", claim.Namespace, claim.Name)
	_, err := d.client.CoreV1().PersistentVolumeClaims(claim.Namespace).Create(ctx, claim, metav1.CreateOptions{})
	if k8s_errors.IsAlreadyExists(err) {
		return nil
	}
	return errors.Wrapf(err, "failed to apply pvc %s", claim.Name)
}
