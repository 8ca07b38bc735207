package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openminiapp/miniapp/internal/cache"
	"github.com/openminiapp/miniapp/internal/installer"
	"github.com/openminiapp/miniapp/internal/registry"
	"github.com/openminiapp/miniapp/internal/securestorage"
	"github.com/openminiapp/miniapp/internal/shared/types"
	"github.com/openminiapp/miniapp/internal/transport"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "miniapp-gateway",
	})
}

func (s *Server) handleList(c *gin.Context) {
	apps, err := s.client.ListMiniApps(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"miniapps": apps})
}

func (s *Server) handleInfo(c *gin.Context) {
	info, err := s.client.GetMiniAppInfo(c.Request.Context(), c.Param("appId"), c.Query("version_id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) handleManifest(c *gin.Context) {
	appID := c.Param("appId")
	versionID := c.Query("version_id")
	if versionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version_id is required"})
		return
	}
	result, err := s.installer.FetchManifest(c.Request.Context(), appID, versionID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"manifest":   result.Manifest,
		"from_cache": result.FromCache,
	})
}

type installBody struct {
	VersionID string `json:"version_id"`
}

func (s *Server) handleInstall(c *gin.Context) {
	appID := c.Param("appId")

	var body installBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	versionID := body.VersionID
	versionTag := ""
	if versionID == "" {
		info, err := s.client.GetMiniAppInfo(c.Request.Context(), appID, "")
		if err != nil {
			s.respondError(c, err)
			return
		}
		versionID = info.Version.VersionID
		versionTag = info.Version.VersionTag
	} else if info, err := s.client.GetMiniAppInfo(c.Request.Context(), appID, versionID); err == nil {
		// The install record keeps the human-readable tag next to the id.
		// A failed lookup leaves the tag blank rather than failing install.
		versionTag = info.Version.VersionTag
	}

	result, err := s.installer.Install(c.Request.Context(), appID, versionID, versionTag)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"app_id":            result.AppID,
		"version_id":        result.VersionID,
		"path":              result.Path,
		"signature_checked": result.SignatureChecked,
	})
}

func (s *Server) handleConsent(c *gin.Context) {
	appID := c.Param("appId")
	var manifest types.Manifest
	if err := c.ShouldBindJSON(&manifest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid manifest"})
		return
	}
	if err := s.installer.AcceptManifest(appID, &manifest); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": true})
}

func (s *Server) handleVerify(c *gin.Context) {
	valid, err := s.verifier.Verify(c.Param("appId"))
	if err != nil {
		if errors.Is(err, cache.ErrNoStoredHash) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no stored hash"})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (s *Server) handlePath(c *gin.Context) {
	path, err := s.installer.ResolvePath(c.Param("appId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) handleDelete(c *gin.Context) {
	appID := c.Param("appId")
	if err := s.installer.CleanAllVersions(appID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := securestorage.WipeApp(s.cfg.Cache.Root, appID); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.manifests.Forget(appID); err != nil {
		s.logger.Warn("manifest forget failed", zap.String("app_id", appID), zap.Error(err))
	}
	if err := s.grants.Forget(appID); err != nil {
		s.logger.Warn("permission forget failed", zap.String("app_id", appID), zap.Error(err))
	}
	if err := s.verifier.Forget(appID); err != nil {
		s.logger.Warn("hash forget failed", zap.String("app_id", appID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handlePreview(c *gin.Context) {
	info, err := s.client.GetPreviewInfo(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// respondError maps pipeline errors onto HTTP statuses. Server errors from
// the registry keep their original status so hosts can surface specific
// messages.
func (s *Server) respondError(c *gin.Context, err error) {
	var serverErr *transport.ServerError
	switch {
	case errors.Is(err, installer.ErrPermissionRequired):
		c.JSON(http.StatusConflict, gin.H{"error": "consent_required"})
	case errors.Is(err, installer.ErrSignatureVerification):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "signature_verification_failed"})
	case errors.Is(err, registry.ErrMiniAppNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "miniapp_not_found"})
	case errors.Is(err, registry.ErrNoPublishedVersion):
		c.JSON(http.StatusNotFound, gin.H{"error": "no_published_version"})
	case errors.Is(err, transport.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_configuration"})
	case errors.As(err, &serverErr):
		c.JSON(serverErr.StatusCode, gin.H{"error": serverErr.Message, "code": serverErr.Code})
	case transport.IsOffline(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": "registry_unreachable"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
