package lis3dsh

// Register addresses.
const (
	Info1    = 0x0D // Information register 1
	Info2    = 0x0E // Information register 2
	WhoAmI   = 0x0F // Identity register, expected to read DeviceID
	OffX     = 0x10 // X-Axis offset correction
	OffY     = 0x11 // Y-Axis offset correction
	OffZ     = 0x12 // Z-Axis offset correction
	CtrlReg4 = 0x20 // ODR, power mode and axis enable
	CtrlReg1 = 0x21 // State machine 1 control
	CtrlReg2 = 0x22 // State machine 2 control
	CtrlReg3 = 0x23 // Interrupt and data-ready control
	CtrlReg5 = 0x24 // Antialias bandwidth, full scale, self-test
	CtrlReg6 = 0x25 // FIFO enable, address auto-increment

	Status = 0x27 // Data status

	OutXL = 0x28 // X-Axis low byte
	OutXH = 0x29 // X-Axis high byte
	OutYL = 0x2A // Y-Axis low byte
	OutYH = 0x2B // Y-Axis high byte
	OutZL = 0x2C // Z-Axis low byte
	OutZH = 0x2D // Z-Axis high byte

	FifoCtrl = 0x2E // FIFO mode and watermark
)

const (
	// DeviceID is the WHO_AM_I value of a LIS3DSH.
	DeviceID = 0x3F

	readBit = 0x80
)

// Configuration values written by Init.
const (
	ctrl4Normal50Hz = 0x5F // normal power mode, all axes enabled, 50 Hz ODR
	ctrl5Filter2G   = 0x80 // 200 Hz antialias filter, +/- 2g full scale
	fifoBypass      = 0x00 // FIFO bypass mode
	ctrl6AutoInc    = 0x10 // FIFO disabled, register address auto-increment

	ctrl4PowerDown = 0x00
	ctrl4Running   = 0x37 // value written last by the sampling lock-up workaround
)
