package scenario

import (
	"os"

	"github.com/GoSim-25-26J-441/casa-core/internal/casaerr"
	"github.com/GoSim-25-26J-441/casa-core/internal/observable"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/runcase"
	"github.com/GoSim-25-26J-441/casa-core/internal/serial"
	"github.com/GoSim-25-26J-441/casa-core/internal/varspace"
)

// DocumentKind tags scenario state files.
const DocumentKind = "ScenarioAnalysis"

const scenarioVersion = 1

// Save writes the scenario state to path. Monte-Carlo misfits are not kept,
// only the sampled cases.
func (s *Scenario) Save(path string, format serial.Format) error {
	reg := serial.NewRegistry()
	o := serial.NewObject(scenarioVersion)
	o["id"] = s.id
	o["base_case"] = s.basePath
	o["location"] = s.location
	o["iteration"] = s.iteration
	// space and catalog first: the case sets refer to them by id
	o["space"] = varspace.SaveSpace(s.space, reg)
	o["catalog"] = observable.SaveCatalog(s.catalog, reg)
	o["doe_cases"] = runcase.SaveSet(s.doeCases, reg)
	o["mc_cases"] = runcase.SaveSet(s.mcCases, reg)
	o["calibration_cases"] = runcase.SaveSet(s.calCases, reg)
	proxies := make([]serial.Object, 0, len(s.proxyOrder))
	for _, name := range s.proxyOrder {
		proxies = append(proxies, rsproxy.Save(s.proxies[name]))
	}
	o["proxies"] = serial.ObjectList(proxies)

	data, err := serial.Encode(format, DocumentKind, o)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return casaerr.Wrap(casaerr.IoError, "Scenario.Save", err, "can not write %s", path)
	}
	s.log.Info("scenario saved", "path", path, "format", format)
	return nil
}

// Load reads a scenario written by Save. Options supply what is not stored:
// run manager, ledger, providers, logger and metrics. The base project is
// opened on first use.
func Load(path string, format serial.Format, opts ...Option) (*Scenario, error) {
	const op = "scenario.Load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, casaerr.Wrap(casaerr.IoError, op, err, "can not read %s", path)
	}
	o, err := serial.Decode(format, data, DocumentKind)
	if err != nil {
		return nil, err
	}
	if _, err := serial.CheckVersion(o, "scenario", scenarioVersion); err != nil {
		return nil, err
	}
	id, err := o.String("id")
	if err != nil {
		return nil, err
	}
	s := New(append(opts, WithID(id))...)
	if s.basePath, err = o.String("base_case"); err != nil {
		return nil, err
	}
	if s.location, err = o.String("location"); err != nil {
		return nil, err
	}
	if s.iteration, err = o.Int("iteration"); err != nil {
		return nil, err
	}

	reg := serial.NewRegistry()
	so, err := o.Object("space")
	if err != nil {
		return nil, err
	}
	if s.space, err = varspace.LoadSpace(so, reg); err != nil {
		return nil, err
	}
	co, err := o.Object("catalog")
	if err != nil {
		return nil, err
	}
	if s.catalog, err = observable.LoadCatalog(co, reg, s.kinds); err != nil {
		return nil, err
	}
	for key, dst := range map[string]**runcase.Set{
		"doe_cases":         &s.doeCases,
		"mc_cases":          &s.mcCases,
		"calibration_cases": &s.calCases,
	} {
		setObj, err := o.Object(key)
		if err != nil {
			return nil, err
		}
		if *dst, err = runcase.LoadSet(setObj, reg); err != nil {
			return nil, casaerr.Wrap(casaerr.CodeOf(err), op, err, "case set %s", key)
		}
	}

	proxies, err := o.Objects("proxies")
	if err != nil {
		return nil, err
	}
	for _, po := range proxies {
		p, err := rsproxy.Load(po, s.space, s.catalog,
			rsproxy.WithFitProvider(s.fitter), rsproxy.WithLogger(s.log), rsproxy.WithMetrics(s.metrics))
		if err != nil {
			return nil, err
		}
		if _, dup := s.proxies[p.Name()]; dup {
			return nil, casaerr.New(casaerr.DeserializationError, op, "proxy %s stored twice", p.Name())
		}
		s.proxies[p.Name()] = p
		s.proxyOrder = append(s.proxyOrder, p.Name())
	}
	s.log.Info("scenario loaded", "path", path, "doe_cases", s.doeCases.Len(), "proxies", len(s.proxyOrder))
	return s, nil
}
