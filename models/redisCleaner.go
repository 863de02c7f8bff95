package models

import (
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
)

type RedisCleaner interface {
	RemoveInstanceRedis() error // remove one
	RemoveAllRedis() error      // remove list if exists
}

// remove both item & list
func RemoveRedisBoth[T RedisCleaner](obj T) error {
	if err := obj.RemoveInstanceRedis(); err != nil {
		return err
	}
	if err := obj.RemoveAllRedis(); err != nil {
		return err
	}
	return nil
}

func (obj Company) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Company](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Company) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllCompany](obj.BusinessId); err != nil {
		return err
	}
	return nil
}

func (obj Warehouse) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Warehouse](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Warehouse) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllWarehouse](obj.BusinessId); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Product](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Product) RemoveAllRedis() error {
	if err := utils.RemoveRedisList[AllProduct](obj.BusinessId); err != nil {
		return err
	}
	return nil
}

func (obj Order) RemoveInstanceRedis() error {
	if err := utils.RemoveRedisItem[Order](obj.ID); err != nil {
		return err
	}
	return nil
}

func (obj Order) RemoveAllRedis() error {
	return nil
}
