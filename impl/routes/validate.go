package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/regfront/regfront/impl/metrics"
	"github.com/regfront/regfront/impl/policy"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	admissionv1 "k8s.io/api/admission/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// POST /validate-image is the Kubernetes validating admission webhook. The request object
// must be a Pod. Every container image in the pod is run through the admission policy
// and the pod is admitted only if all of them are allowed.
func (st *State) handleValidateImage(ctx echo.Context) error {
	metrics.IncApiRequests()
	review := admissionv1.AdmissionReview{}
	if err := ctx.Bind(&review); err != nil || review.Request == nil {
		return ctx.JSON(http.StatusBadRequest, registryErrors{
			Errors: []registryError{{Code: "BAD_REQUEST", Message: "expected an AdmissionReview with a request"}},
		})
	}
	resp := &admissionv1.AdmissionResponse{UID: review.Request.UID}
	pod := corev1.Pod{}
	if err := podFrom(review.Request, &pod); err != nil {
		resp.Result = &metav1.Status{Message: err.Error()}
	} else {
		decisions := st.decidePod(pod)
		resp.Allowed, resp.Result = summarize(decisions)
	}
	if resp.Allowed {
		metrics.IncAdmissionDecisions("allowed")
	} else {
		metrics.IncAdmissionDecisions("denied")
	}
	log.Infof("validation callback for %s/%s: allowed=%t %s", review.Request.Namespace, review.Request.Name, resp.Allowed, resp.Result.Message)
	return ctx.JSON(http.StatusOK, admissionv1.AdmissionReview{
		TypeMeta: metav1.TypeMeta{APIVersion: "admission.k8s.io/v1", Kind: "AdmissionReview"},
		Response: resp,
	})
}

// podFrom extracts the Pod from the admission request
func podFrom(req *admissionv1.AdmissionRequest, pod *corev1.Pod) error {
	if req.Kind.Kind != "Pod" {
		return fmt.Errorf("unsupported kind %q, only Pod is validated", req.Kind.Kind)
	}
	if err := json.Unmarshal(req.Object.Raw, pod); err != nil {
		return fmt.Errorf("unable to decode pod: %s", err)
	}
	return nil
}

// decidePod runs every init and regular container image through the matcher
func (st *State) decidePod(pod corev1.Pod) []policy.Decision {
	decisions := []policy.Decision{}
	for _, containers := range [][]corev1.Container{pod.Spec.InitContainers, pod.Spec.Containers} {
		for _, c := range containers {
			decisions = append(decisions, st.Matcher.Decide(c.Image))
		}
	}
	return decisions
}

// summarize admits the pod only if every image is allowed. The status message names the
// denied images, or says that all images were allowed.
func summarize(decisions []policy.Decision) (bool, *metav1.Status) {
	denied := []string{}
	for _, d := range decisions {
		if !d.Allowed {
			denied = append(denied, d.Reason)
		}
	}
	if len(denied) != 0 {
		return false, &metav1.Status{
			Code:    http.StatusForbidden,
			Reason:  metav1.StatusReasonForbidden,
			Message: strings.Join(denied, "; "),
		}
	}
	return true, &metav1.Status{Code: http.StatusOK, Message: fmt.Sprintf("%d image(s) allowed", len(decisions))}
}
