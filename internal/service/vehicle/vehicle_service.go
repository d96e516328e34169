// Package vehicle 车辆管理服务
package vehicle

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/quickmech/quickmech-backend/internal/common/config"
	apperrors "github.com/quickmech/quickmech-backend/internal/common/errors"
	"github.com/quickmech/quickmech-backend/internal/common/logger"
	"github.com/quickmech/quickmech-backend/internal/models"
	"github.com/quickmech/quickmech-backend/internal/repository"
	"github.com/quickmech/quickmech-backend/pkg/platelookup"
)

// maxVehiclesPerClient 每个客户最多保存的车辆数
const maxVehiclesPerClient = 5

// VehicleService 车辆服务
type VehicleService struct {
	vehicleRepo *repository.VehicleRepository
	lookup      *platelookup.Client
	cfg         *config.Config
}

// NewVehicleService 创建车辆服务
func NewVehicleService(vehicleRepo *repository.VehicleRepository, lookup *platelookup.Client, cfg *config.Config) *VehicleService {
	return &VehicleService{
		vehicleRepo: vehicleRepo,
		lookup:      lookup,
		cfg:         cfg,
	}
}

// CreateVehicleRequest 添加车辆请求
type CreateVehicleRequest struct {
	Plate      string  `json:"plate" binding:"required,max=10"`
	Country    string  `json:"country" binding:"required,oneof=uk br"`
	Make       string  `json:"make" binding:"max=50"`
	Model      string  `json:"model" binding:"max=80"`
	Year       *int    `json:"year,omitempty"`
	Color      *string `json:"color,omitempty"`
	Fuel       *string `json:"fuel,omitempty"`
	Version    *string `json:"version,omitempty"`
	EngineSize *string `json:"engine_size,omitempty"`
}

// Create 手工添加车辆
func (s *VehicleService) Create(ctx context.Context, clientID int64, req *CreateVehicleRequest) (*models.Vehicle, error) {
	plate := platelookup.NormalizePlate(req.Plate)
	if err := s.validatePlate(plate, req.Country); err != nil {
		return nil, err
	}
	if err := s.checkLimitAndDuplicate(ctx, clientID, plate); err != nil {
		return nil, err
	}

	vehicle := &models.Vehicle{
		ClientID:   clientID,
		Plate:      plate,
		Make:       req.Make,
		Model:      req.Model,
		Year:       req.Year,
		Color:      req.Color,
		Fuel:       req.Fuel,
		Version:    req.Version,
		EngineSize: req.EngineSize,
		Country:    req.Country,
		Source:     models.VehicleSourceManual,
	}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return vehicle, nil
}

// LookupPlateRequest 车牌查询请求
type LookupPlateRequest struct {
	Plate   string `json:"plate" binding:"required,max=10"`
	Country string `json:"country" binding:"required,oneof=uk br"`
}

// LookupPlate 查询车牌信息，不落库
func (s *VehicleService) LookupPlate(ctx context.Context, req *LookupPlateRequest) (*platelookup.Result, error) {
	plate := platelookup.NormalizePlate(req.Plate)
	if err := s.validatePlate(plate, req.Country); err != nil {
		return nil, err
	}

	var result *platelookup.Result
	var err error
	if req.Country == models.MarketBR {
		result, err = s.lookup.LookupBrasil(ctx, plate)
	} else {
		result, err = s.lookup.LookupUK(ctx, plate)
	}
	if err != nil {
		logger.Warn("车牌查询失败", logger.Plate(plate), logger.Err(err))
		return nil, apperrors.ErrPlateLookupFailed.WithError(err)
	}
	return result, nil
}

// CreateFromLookup 车牌查询并直接保存为车辆
func (s *VehicleService) CreateFromLookup(ctx context.Context, clientID int64, req *LookupPlateRequest) (*models.Vehicle, error) {
	result, err := s.LookupPlate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimitAndDuplicate(ctx, clientID, result.Plate); err != nil {
		return nil, err
	}

	source := models.VehicleSourceMock
	switch result.Source {
	case "dvla":
		source = models.VehicleSourceDVLA
	case "placa":
		source = models.VehicleSourcePlaca
	}

	vehicle := &models.Vehicle{
		ClientID: clientID,
		Plate:    result.Plate,
		Make:     result.Make,
		Model:    result.Model,
		Country:  req.Country,
		Source:   source,
	}
	if result.Year > 0 {
		vehicle.Year = &result.Year
	}
	if result.Color != "" {
		vehicle.Color = &result.Color
	}
	if result.Fuel != "" {
		vehicle.Fuel = &result.Fuel
	}
	if result.EngineSize != "" {
		vehicle.EngineSize = &result.EngineSize
	}

	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return vehicle, nil
}

// List 客户车辆列表
func (s *VehicleService) List(ctx context.Context, clientID int64) ([]*models.Vehicle, error) {
	vehicles, err := s.vehicleRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return vehicles, nil
}

// GetByID 获取本人车辆详情
func (s *VehicleService) GetByID(ctx context.Context, clientID, vehicleID int64) (*models.Vehicle, error) {
	vehicle, err := s.vehicleRepo.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrVehicleNotFound
		}
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	if vehicle.ClientID != clientID {
		return nil, apperrors.ErrPermissionDenied
	}
	return vehicle, nil
}

// UpdateVehicleRequest 更新车辆请求
type UpdateVehicleRequest struct {
	Make       *string `json:"make,omitempty"`
	Model      *string `json:"model,omitempty"`
	Year       *int    `json:"year,omitempty"`
	Color      *string `json:"color,omitempty"`
	Fuel       *string `json:"fuel,omitempty"`
	Version    *string `json:"version,omitempty"`
	EngineSize *string `json:"engine_size,omitempty"`
}

// Update 更新本人车辆
func (s *VehicleService) Update(ctx context.Context, clientID, vehicleID int64, req *UpdateVehicleRequest) (*models.Vehicle, error) {
	vehicle, err := s.GetByID(ctx, clientID, vehicleID)
	if err != nil {
		return nil, err
	}

	if req.Make != nil {
		vehicle.Make = *req.Make
	}
	if req.Model != nil {
		vehicle.Model = *req.Model
	}
	if req.Year != nil {
		vehicle.Year = req.Year
	}
	if req.Color != nil {
		vehicle.Color = req.Color
	}
	if req.Fuel != nil {
		vehicle.Fuel = req.Fuel
	}
	if req.Version != nil {
		vehicle.Version = req.Version
	}
	if req.EngineSize != nil {
		vehicle.EngineSize = req.EngineSize
	}

	if err := s.vehicleRepo.Update(ctx, vehicle); err != nil {
		return nil, apperrors.ErrDatabaseError.WithError(err)
	}
	return vehicle, nil
}

// Delete 删除本人车辆
func (s *VehicleService) Delete(ctx context.Context, clientID, vehicleID int64) error {
	err := s.vehicleRepo.Delete(ctx, clientID, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrVehicleNotFound
		}
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}

func (s *VehicleService) validatePlate(plate, country string) error {
	switch country {
	case models.MarketBR:
		if !platelookup.ValidateBrasilPlate(plate) {
			return apperrors.ErrPlateInvalid
		}
	default:
		if !platelookup.ValidateUKPlate(plate) {
			return apperrors.ErrPlateInvalid
		}
	}
	return nil
}

func (s *VehicleService) checkLimitAndDuplicate(ctx context.Context, clientID int64, plate string) error {
	count, err := s.vehicleRepo.CountByClient(ctx, clientID)
	if err != nil {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	if count >= maxVehiclesPerClient {
		return apperrors.ErrVehicleLimitReached
	}

	_, err = s.vehicleRepo.GetByClientAndPlate(ctx, clientID, plate)
	if err == nil {
		return apperrors.ErrAlreadyExists.WithMessage("该车牌已添加")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrDatabaseError.WithError(err)
	}
	return nil
}
