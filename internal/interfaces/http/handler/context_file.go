package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"openspec-api/internal/application/contextfile"
	"openspec-api/internal/domain/entity"
	"openspec-api/internal/interfaces/http/dto"
	apperrors "openspec-api/pkg/errors"
)

// ContextFileHandler 上下文文件处理器
type ContextFileHandler struct {
	validator *contextfile.Validator
}

// NewContextFileHandler 创建上下文文件处理器
func NewContextFileHandler(v *contextfile.Validator) *ContextFileHandler {
	return &ContextFileHandler{validator: v}
}

// Upload multipart 上传，返回规范化后的文件记录
// @Summary 上传上下文文件
// @Tags ContextFiles
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "文件，可多个"
// @Success 200 {object} dto.Response[dto.ContextFileListResponse]
// @Failure 413 {object} dto.ErrorResponse
// @Router /v1/context-files [post]
func (h *ContextFileHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		dto.Fail(c, bindErr(err))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		dto.BadRequest(c, "no files uploaded")
		return
	}

	lastModified, _ := strconv.ParseInt(c.PostForm("lastModified"), 10, 64)

	files := make([]entity.ContextFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			dto.Fail(c, apperrors.Wrap(err, apperrors.CodeInvalidRequest, "failed to open upload "+fh.Filename))
			return
		}
		cf, err := h.validator.FromUpload(fh.Filename, fh.Header.Get("Content-Type"), lastModified, f)
		_ = f.Close()
		if err != nil {
			dto.Fail(c, err)
			return
		}
		files = append(files, cf)
	}

	// 数量上限按整批校验
	if _, err := h.validator.Validate(files); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ContextFileListResponse{Files: dto.ToContextFiles(files)})
}

// Validate 校验 JSON 形式的文件列表
// @Router /v1/context-files/validate [post]
func (h *ContextFileHandler) Validate(c *gin.Context) {
	var req dto.ValidateContextFilesRequest
	if err := bindJSON(c, &req); err != nil {
		dto.Fail(c, err)
		return
	}
	files, err := h.validator.Validate(dto.ToContextFileEntities(req.Files))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ContextFileSummaryResponse{Files: dto.ToContextFileSummaries(files)})
}
