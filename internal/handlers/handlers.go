package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/face-attend/internal/repository"
	"github.com/example/face-attend/internal/usecase"
)

// MaxUploadSize caps face image uploads.
const MaxUploadSize = 8 << 20

// facePayload is the JSON body shared by the base64 attendance endpoints.
type facePayload struct {
	StudentID string `json:"student_id" binding:"required"`
	Image     string `json:"image" binding:"required"`
}

type referencePayload struct {
	Image        string `json:"image" binding:"required"`
	ReferenceURL string `json:"reference_url" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router. The transport
// adapters only decode the wire format into an identity and raw image
// bytes; both enrollment variants converge on the same flow.
func RegisterRoutes(router *gin.Engine, uc *usecase.FaceUseCase) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/enrollment/register_face", func(c *gin.Context) {
		studentID := c.PostForm("student_id")
		if studentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to register face: student_id is required"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to register face: image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Failed to register face: image too large"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Failed to register face: unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to register face: failed to read image"})
			return
		}

		if err := uc.Enroll(c.Request.Context(), studentID, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": fmt.Sprintf("Failed to register face: %v", err)})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Face registered successfully"})
	})

	router.POST("/attendance/enroll-face", func(c *gin.Context) {
		var payload facePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "student_id and image are required"})
			return
		}

		data, err := base64.StdEncoding.DecodeString(payload.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "image is not valid base64"})
			return
		}

		if err := uc.Enroll(c.Request.Context(), payload.StudentID, data); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "Face enrolled"})
	})

	router.POST("/attendance/verify-face", func(c *gin.Context) {
		var payload facePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "student_id and image are required"})
			return
		}

		data, err := base64.StdEncoding.DecodeString(payload.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "image is not valid base64"})
			return
		}

		outcome, err := uc.Verify(c.Request.Context(), payload.StudentID, data)
		if err != nil {
			if errors.Is(err, repository.ErrIdentityNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"detail": fmt.Sprintf("no enrolled face for student %s", payload.StudentID)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":     "Success",
			"match":      outcome.Matched,
			"distance":   outcome.Distance,
			"request_id": outcome.RequestID,
		})
	})

	router.POST("/attendance/verify-reference", func(c *gin.Context) {
		var payload referencePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "image and reference_url are required"})
			return
		}

		data, err := base64.StdEncoding.DecodeString(payload.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "image is not valid base64"})
			return
		}

		// This entry point fails closed: pipeline errors come back as a
		// non-match, never as a 5xx.
		outcome := uc.VerifyAgainstReference(c.Request.Context(), data, payload.ReferenceURL)
		c.JSON(http.StatusOK, gin.H{
			"match":    outcome.Matched,
			"distance": outcome.Distance,
		})
	})

	router.GET("/attendance/result/:id", func(c *gin.Context) {
		requestID := c.Param("id")
		studentID := c.Query("student_id")
		if requestID == "" || studentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "id and student_id are required"})
			return
		}

		log, err := uc.GetResult(c.Request.Context(), studentID, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": log.RequestID,
			"student_id": log.StudentID,
			"match":      log.Matched,
			"distance":   log.Distance,
			"details":    log.Details,
			"created_at": log.CreatedAt,
		})
	})

	router.GET("/attendance/metrics", func(c *gin.Context) {
		summary, err := uc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}
