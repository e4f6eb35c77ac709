package decode

import "fmt"

// Cycling Power Feature capabilities (0x2a65)
const (
	PedalPowerBalanceSupported           Capability = "pedalPowerBalanceSupported"
	AccumulatedTorqueSupported           Capability = "accumulatedTorqueSupported"
	WheelRevolutionDataSupported         Capability = "wheelRevolutionDataSupported"
	CrankRevolutionDataSupported         Capability = "crankRevolutionDataSupported"
	ExtremeMagnitudesSupported           Capability = "extremeMagnitudesSupported"
	ExtremeAnglesSupported               Capability = "extremeAnglesSupported"
	TopAndBottomDeadSpotAnglesSupported  Capability = "topAndBottomDeadSpotAnglesSupported"
	AccumulatedEnergySupported           Capability = "accumulatedEnergySupported"
	OffsetCompensationIndicatorSupported Capability = "offsetCompensationIndicatorSupported"
	OffsetCompensationSupported          Capability = "offsetCompensationSupported"
	MeasurementContentMaskingSupported   Capability = "cyclingPowerMeasurementCharacteristicContentMaskingSupported"
	MultipleSensorLocationsSupported     Capability = "multipleSensorLocationsSupported"
	CrankLengthAdjustmentSupported       Capability = "crankLengthAdjustmentSupported"
	ChainLengthAdjustmentSupported       Capability = "chainLengthAdjustmentSupported"
	ChainWeightAdjustmentSupported       Capability = "chainWeightAdjustmentSupported"
	SpanLengthAdjustmentSupported        Capability = "spanLengthAdjustmentSupported"
)

// PowerFeatureBits is the Cycling Power Feature layout.
var PowerFeatureBits = BitTable{
	{0, PedalPowerBalanceSupported},
	{1, AccumulatedTorqueSupported},
	{2, WheelRevolutionDataSupported},
	{3, CrankRevolutionDataSupported},
	{4, ExtremeMagnitudesSupported},
	{5, ExtremeAnglesSupported},
	{6, TopAndBottomDeadSpotAnglesSupported},
	{7, AccumulatedEnergySupported},
	{8, OffsetCompensationIndicatorSupported},
	{9, OffsetCompensationSupported},
	{10, MeasurementContentMaskingSupported},
	{11, MultipleSensorLocationsSupported},
	{12, CrankLengthAdjustmentSupported},
	{13, ChainLengthAdjustmentSupported},
	{14, ChainWeightAdjustmentSupported},
	{15, SpanLengthAdjustmentSupported},
}

// CSCFeatureBits is the CSC Feature layout (0x2a5c). Bits 0-2 share names with the power table.
var CSCFeatureBits = BitTable{
	{0, WheelRevolutionDataSupported},
	{1, CrankRevolutionDataSupported},
	{2, MultipleSensorLocationsSupported},
}

// Fitness Machine Feature capabilities (first word of 0x2acc)
const (
	AverageSpeedSupported              Capability = "averageSpeedSupported"
	CadenceSupported                   Capability = "cadenceSupported"
	TotalDistanceSupported             Capability = "totalDistanceSupported"
	InclinationSupported               Capability = "inclinationSupported"
	ElevationGainSupported             Capability = "elevationGainSupported"
	PaceSupported                      Capability = "paceSupported"
	StepCountSupported                 Capability = "stepCountSupported"
	ResistanceLevelSupported           Capability = "resistanceLevelSupported"
	StrideCountSupported               Capability = "strideCountSupported"
	ExpendedEnergySupported            Capability = "expendedEnergySupported"
	HeartRateMeasurementSupported      Capability = "heartRateMeasurementSupported"
	MetabolicEquivalentSupported       Capability = "metabolicEquivalentSupported"
	ElapsedTimeSupported               Capability = "elapsedTimeSupported"
	RemainingTimeSupported             Capability = "remainingTimeSupported"
	PowerMeasurementSupported          Capability = "powerMeasurementSupported"
	ForceOnBeltAndPowerOutputSupported Capability = "forceOnBeltAndPowerOutputSupported"
	UserDataRetentionSupported         Capability = "userDataRetentionSupported"
)

// FitnessMachineFeatureBits is the Fitness Machine Features word layout.
var FitnessMachineFeatureBits = BitTable{
	{0, AverageSpeedSupported},
	{1, CadenceSupported},
	{2, TotalDistanceSupported},
	{3, InclinationSupported},
	{4, ElevationGainSupported},
	{5, PaceSupported},
	{6, StepCountSupported},
	{7, ResistanceLevelSupported},
	{8, StrideCountSupported},
	{9, ExpendedEnergySupported},
	{10, HeartRateMeasurementSupported},
	{11, MetabolicEquivalentSupported},
	{12, ElapsedTimeSupported},
	{13, RemainingTimeSupported},
	{14, PowerMeasurementSupported},
	{15, ForceOnBeltAndPowerOutputSupported},
	{16, UserDataRetentionSupported},
}

// Target Setting Features capabilities (second word of 0x2acc)
const (
	SpeedTargetSettingSupported                             Capability = "speedTargetSettingSupported"
	InclineTargetSettingSupported                           Capability = "inclineTargetSettingSupported"
	ResistanceTargetSettingSupported                        Capability = "resistanceTargetSettingSupported"
	PowerTargetSettingSupported                             Capability = "powerTargetSettingSupported"
	HeartRateTargetSettingSupported                         Capability = "heartRateTargetSettingSupported"
	TargetedExpendedEnergyConfigurationSupported            Capability = "targetedExpendedEnergyConfigurationSupported"
	TargetedStepNumberConfigurationSupported                Capability = "targetedStepNumberConfigurationSupported"
	TargetedStrideNumberConfigurationSupported              Capability = "targetedStrideNumberConfigurationSupported"
	TargetedDistanceConfigurationSupported                  Capability = "targetedDistanceConfigurationSupported"
	TargetedTrainingTimeConfigurationSupported              Capability = "targetedTrainingTimeConfigurationSupported"
	TargetedTimeInTwoHeartRateZonesConfigurationSupported   Capability = "targetedTimeInTwoHeartRateZonesConfigurationSupported"
	TargetedTimeInThreeHeartRateZonesConfigurationSupported Capability = "targetedTimeInThreeHeartRateZonesConfigurationSupported"
	TargetedTimeInFiveHeartRateZonesConfigurationSupported  Capability = "targetedTimeInFiveHeartRateZonesConfigurationSupported"
	IndoorBikeSimulationParametersSupported                 Capability = "indoorBikeSimulationParametersSupported"
	WheelCircumferenceConfigurationSupported                Capability = "wheelCircumferenceConfigurationSupported"
	SpinDownControlSupported                                Capability = "spinDownControlSupported"
	TargetedCadenceConfigurationSupported                   Capability = "targetedCadenceConfigurationSupported"
)

// TargetSettingFeatureBits is the Target Setting Features word layout.
var TargetSettingFeatureBits = BitTable{
	{0, SpeedTargetSettingSupported},
	{1, InclineTargetSettingSupported},
	{2, ResistanceTargetSettingSupported},
	{3, PowerTargetSettingSupported},
	{4, HeartRateTargetSettingSupported},
	{5, TargetedExpendedEnergyConfigurationSupported},
	{6, TargetedStepNumberConfigurationSupported},
	{7, TargetedStrideNumberConfigurationSupported},
	{8, TargetedDistanceConfigurationSupported},
	{9, TargetedTrainingTimeConfigurationSupported},
	{10, TargetedTimeInTwoHeartRateZonesConfigurationSupported},
	{11, TargetedTimeInThreeHeartRateZonesConfigurationSupported},
	{12, TargetedTimeInFiveHeartRateZonesConfigurationSupported},
	{13, IndoorBikeSimulationParametersSupported},
	{14, WheelCircumferenceConfigurationSupported},
	{15, SpinDownControlSupported},
	{16, TargetedCadenceConfigurationSupported},
}

// DecodePowerFeature decodes the Cycling Power Feature characteristic.
// A 4 byte value is read as 32 bits, anything else as 16 bits.
func DecodePowerFeature(buf []byte) (Capabilities, error) {
	var flags uint32
	if len(buf) == 4 {
		v, _, err := ReadUint32(buf, 0)
		if err != nil {
			return nil, err
		}
		flags = v
	} else {
		v, _, err := ReadUint16(buf, 0)
		if err != nil {
			return nil, fmt.Errorf("power feature: %w", err)
		}
		flags = uint32(v)
	}
	return PowerFeatureBits.Decode(flags), nil
}

// DecodeCSCFeature decodes the CSC Feature characteristic.
func DecodeCSCFeature(buf []byte) (Capabilities, error) {
	flags, _, err := ReadUint16(buf, 0)
	if err != nil {
		return nil, fmt.Errorf("csc feature: %w", err)
	}
	return CSCFeatureBits.Decode(uint32(flags)), nil
}

// FitnessMachineFeatures is the decoded Fitness Machine Feature characteristic.
type FitnessMachineFeatures struct {
	Machine        Capabilities `json:"machine"`
	TargetSettings Capabilities `json:"targetSettings"`
}

// DecodeFitnessMachineFeature decodes both 32-bit words of the Fitness Machine Feature characteristic.
func DecodeFitnessMachineFeature(buf []byte) (FitnessMachineFeatures, error) {
	machine, off, err := ReadUint32(buf, 0)
	if err != nil {
		return FitnessMachineFeatures{}, fmt.Errorf("fitness machine feature: %w", err)
	}
	target, _, err := ReadUint32(buf, off)
	if err != nil {
		return FitnessMachineFeatures{}, fmt.Errorf("target setting feature: %w", err)
	}
	return FitnessMachineFeatures{
		Machine:        FitnessMachineFeatureBits.Decode(machine),
		TargetSettings: TargetSettingFeatureBits.Decode(target),
	}, nil
}
