package purchases

import (
	"context"
	"fmt"
	"log/slog"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
)

const (
	UploadPath      = "/purchases/upload-csv"
	UploadField     = "file"
	UploadFilename  = "upload.csv"
	UploadMediaType = "text/csv"
)

type Uploader interface {
	UploadBinary(ctx context.Context, path string, form *client.Form, out any, opts ...client.CallOption) (*client.Response, error)
}

type Purchases struct {
	api Uploader
	log *slog.Logger
}

func New(api Uploader, log *slog.Logger) *Purchases {
	if log == nil {
		log = slog.Default()
	}
	return &Purchases{api: api, log: log}
}

// Upload re-encodes sheet and posts it as a multipart file.
func (p *Purchases) Upload(ctx context.Context, sheet *Sheet) (*model.UploadResult, error) {
	const op = "purchases.Upload"

	data, err := sheet.Encode()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	form := &client.Form{}
	form.AddFile(UploadField, UploadFilename, UploadMediaType, data)

	var res model.UploadResult
	if _, err := p.api.UploadBinary(ctx, UploadPath, form, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p.log.Info("csv uploaded",
		slog.Int("rows", len(sheet.Rows)),
		slog.Int("inserted", res.Inserted),
		slog.Int("skipped", res.Skipped))
	return &res, nil
}
