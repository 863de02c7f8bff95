package models

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/disintegration/imaging"
	"gorm.io/gorm"
)

// Image is a polymorphic product photo; a 200px thumbnail is generated and
// stored next to the original.
type Image struct {
	ID            int    `gorm:"primary_key" json:"id"`
	ImageUrl      string `json:"image_url"`
	ThumbnailUrl  string `json:"thumbnail_url"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   int    `json:"reference_id"`
}

type NewImage struct {
	HasId
	HasIsDeleted
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

type UploadResponse struct {
	ImageUrl     string `json:"image_url"`
	ThumbnailUrl string `json:"thumbnail_url"`
}

func mapNewImages(imageInput []*NewImage, referenceType string, referenceId int) ([]*Image, error) {

	var images []*Image

	for _, input := range imageInput {
		image, err := input.MapInput(referenceType, referenceId)
		if err != nil {
			return nil, err
		}

		images = append(images, image)
	}
	return images, nil
}

func UploadSingleImage(ctx context.Context, filename string, data []byte) (*UploadResponse, error) {

	originalCloudURL, thumbnailCloudURL, err := UploadImage(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	response := &UploadResponse{
		ImageUrl:     originalCloudURL,
		ThumbnailUrl: thumbnailCloudURL,
	}

	return response, nil
}

// remove single image, including thumbnail
func RemoveImage(ctx context.Context, fullUrl string) (*UploadResponse, error) {

	// only remove image if not used in database
	var count int64
	db := config.GetDB()

	if err := db.Model(&Image{}).WithContext(ctx).Where("image_url = ?", fullUrl).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("cannot delete image associated with database")
	}

	// check if image exists
	objectName := utils.ExtractObjectKeyFromURL(fullUrl)
	if objectName == "" {
		return nil, errors.New("invalid url")
	}
	if ok, err := utils.ObjectExistsInGCS(ctx, objectName); !ok || err != nil {
		return nil, errors.New("object does not exist")
	}

	// remove image + thumbnail from cloud
	if err := utils.DeleteObjectFromGCS(ctx, objectName); err != nil {
		return nil, err
	}
	storagePath := strings.Split(objectName, "/")[0]
	filename := strings.Split(objectName, "/")[1]
	// remove thumbnail
	thumbnailObjectName := filepath.Join(storagePath, "thumbnails", filename)
	if err := utils.DeleteObjectFromGCS(ctx, thumbnailObjectName); err != nil {
		return nil, err
	}

	return &UploadResponse{
		ImageUrl:     utils.BuildObjectAccessURL(objectName),
		ThumbnailUrl: utils.BuildObjectAccessURL(thumbnailObjectName),
	}, nil
}

// UploadImage stores the original under products/ and a generated thumbnail
// under products/thumbnails/, returning both access URLs.
func UploadImage(ctx context.Context, filename string, data []byte) (string, string, error) {
	businessId, _ := utils.GetBusinessIdFromContext(ctx)

	if len(data) == 0 {
		return "", "", errors.New("empty file provided")
	}

	// Extract the file extension
	ext := filepath.Ext(filename)
	if ext == "" {
		return "", "", errors.New("file has no extension")
	}
	storagePath := "products/"
	uniqueFilename := businessId + " " + utils.GenerateUniqueFilename() + ext
	originalImageObjectKey := filepath.Join(storagePath, uniqueFilename)
	thumbnailImageObjectKey := filepath.Join(storagePath, "thumbnails", uniqueFilename)

	contentType := http.DetectContentType(data)
	err := utils.UploadBytesToGCS(ctx, originalImageObjectKey, data, contentType)
	if err != nil {
		return "", "", err
	}

	// Generate and save the thumbnail
	thumbnailData, err := generateThumbnail(data)
	if err != nil {
		return "", "", err
	}

	err = utils.UploadBytesToGCS(ctx, thumbnailImageObjectKey, thumbnailData, "image/jpeg")
	if err != nil {
		return "", "", err
	}

	originalCloudURL := utils.BuildObjectAccessURL(originalImageObjectKey)
	thumbnailCloudURL := utils.BuildObjectAccessURL(thumbnailImageObjectKey)

	return originalCloudURL, thumbnailCloudURL, nil
}

func generateThumbnail(originalData []byte) ([]byte, error) {
	// Decode the original image
	img, err := imaging.Decode(bytes.NewReader(originalData))
	if err != nil {
		return nil, err
	}

	// Resize the image to create a thumbnail
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	// Encode the thumbnail to JPEG format
	var thumbnailBuffer bytes.Buffer
	err = imaging.Encode(&thumbnailBuffer, thumbnail, imaging.JPEG)
	if err != nil {
		return nil, err
	}

	return thumbnailBuffer.Bytes(), nil
}

func (img *Image) Store(tx *gorm.DB, ctx context.Context) error {
	if err := tx.WithContext(ctx).Create(&img).Error; err != nil {
		return err
	}
	return nil

}

func (img *Image) Update(tx *gorm.DB, ctx context.Context, data map[string]interface{}) error {
	// update existing image
	if err := tx.WithContext(ctx).Model(&img).Updates(data).Error; err != nil {
		return err
	}
	return nil
}

// expected img is loaded from db
func (img *Image) Delete(tx *gorm.DB, ctx context.Context) error {

	if err := tx.WithContext(ctx).Delete(&img).Error; err != nil {
		return err
	}
	if err := utils.DeleteObjectFromGCS(ctx, utils.ExtractObjectKeyFromURL(img.ImageUrl)); err != nil {
		return err
	}
	if err := utils.DeleteObjectFromGCS(ctx, utils.ExtractObjectKeyFromURL(img.ThumbnailUrl)); err != nil {
		return err
	}
	return nil
}

// map newImage to Image, for db.Create(&image)
func (input NewImage) MapInput(referenceType string, referenceId int) (*Image, error) {
	if err := checkObjectURL(context.Background(), input.ImageUrl); err != nil {
		return nil, err
	}
	if err := checkObjectURL(context.Background(), input.ThumbnailUrl); err != nil {
		return nil, err
	}
	return &Image{
		ReferenceType: referenceType,
		ReferenceID:   referenceId,
		ImageUrl:      input.ImageUrl,
		ThumbnailUrl:  input.ThumbnailUrl,
	}, nil
}

func (input NewImage) Fillable() (map[string]interface{}, error) {
	if err := checkObjectURL(context.Background(), input.ImageUrl); err != nil {
		return nil, err
	}
	if err := checkObjectURL(context.Background(), input.ThumbnailUrl); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"ImageUrl":     input.ImageUrl,
		"ThumbnailUrl": input.ThumbnailUrl,
	}, nil
}

func UpsertImages(ctx context.Context, tx *gorm.DB, inputImages []*NewImage, referenceType string, referenceId int) ([]*Image, error) {
	return UpsertPolymorphicAssociation(ctx, tx, inputImages, referenceType, referenceId)
}
